package gmailsync

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	urlRE            = regexp.MustCompile(`(?i)https?://`)
	invoiceHintRE    = regexp.MustCompile(`(?i)(szamla|invoice|fizetesi link|payment link)`)
	amountRE         = regexp.MustCompile(`(?i)(^|[^\d])(\d{1,3}(?:[ .]\d{3})+|\d+)(?:[,.](\d{1,2}))?\s*(HUF|Ft|EUR|USD)?`)
	paymentLinkRE    = regexp.MustCompile(`(?i)https?://[^\s<>"]+`)
	dueDateKeywordRE = regexp.MustCompile(`(?i)(hatarido|esedekes|fizetesi hatarido|due date)`)
	amountHintRE     = regexp.MustCompile(`(?i)(fizetendo|osszeg|vegosszeg|total|amount|to pay)`)
	isoDateRE        = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	localDateRE      = regexp.MustCompile(`\b(\d{1,2})[./-](\d{1,2})[./-](\d{4})\b`)
	digitsOnlyRE     = regexp.MustCompile(`^\d+$`)
)

var paymentLinkKeys = []string{"pay", "payment", "fizet", "stripe", "paypal", "simplepay", "barion", "revolut"}

// buildEffectiveQuery combines the label and the saved search query into one
// Gmail query string.
func buildEffectiveQuery(labelName, gmailQuery string) string {
	safeLabel := strings.ReplaceAll(labelName, `"`, "")
	labelQuery := ""
	if safeLabel != "" {
		labelQuery = fmt.Sprintf(`label:"%s"`, safeLabel)
	}
	if labelQuery != "" && gmailQuery != "" {
		return fmt.Sprintf("(%s) (%s)", labelQuery, gmailQuery)
	}
	if labelQuery != "" {
		return labelQuery
	}
	return gmailQuery
}

// extractPaymentLink returns the most payment-looking URL in the text, or
// the first URL as a fallback.
func extractPaymentLink(text string) *string {
	matches := paymentLinkRE.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	for _, match := range matches {
		url := strings.TrimRight(strings.TrimSpace(match), ".,)")
		lower := strings.ToLower(url)
		for _, key := range paymentLinkKeys {
			if strings.Contains(lower, key) {
				return &url
			}
		}
	}
	url := strings.TrimRight(strings.TrimSpace(matches[0]), ".,)")
	return &url
}

// extractAmountAndCurrency scans the text line by line for money-looking
// numbers. Lines with payment hints score higher, an explicit currency
// scores higher still, and year-like bare numbers are dropped. Returns nil
// when nothing plausible was found; the currency then defaults to HUF.
func extractAmountAndCurrency(text string) (*decimal.Decimal, string) {
	type candidate struct {
		amount   decimal.Decimal
		currency string
		score    int
	}
	var candidates []candidate

	for _, line := range strings.Split(text, "\n") {
		hasHint := amountHintRE.MatchString(line)
		for _, match := range amountRE.FindAllStringSubmatch(line, -1) {
			intPart, decimalPart, currency := match[2], match[3], match[4]
			normalized := strings.NewReplacer(" ", "", ".", "").Replace(intPart)
			if !digitsOnlyRE.MatchString(normalized) {
				continue
			}
			if decimalPart != "" {
				normalized = normalized + "." + decimalPart
			}
			amount, err := decimal.NewFromString(normalized)
			if err != nil || !amount.IsPositive() {
				continue
			}

			// Bare small numbers and year-like values are almost never
			// amounts.
			if currency == "" {
				if amount.LessThan(decimal.NewFromInt(100)) {
					continue
				}
				if amount.GreaterThanOrEqual(decimal.NewFromInt(1900)) && amount.LessThanOrEqual(decimal.NewFromInt(2100)) {
					continue
				}
			}

			normalizedCurrency := strings.ToUpper(currency)
			if normalizedCurrency == "" || normalizedCurrency == "FT" {
				normalizedCurrency = "HUF"
			}
			score := 1
			if hasHint {
				score = 10
			}
			if currency != "" {
				score += 5
			}
			candidates = append(candidates, candidate{amount: amount, currency: normalizedCurrency, score: score})
		}
	}

	if len(candidates) == 0 {
		return nil, "HUF"
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score || (c.score == best.score && c.amount.GreaterThan(best.amount)) {
			best = c
		}
	}
	return &best.amount, best.currency
}

// extractDueDate looks for a date near deadline keywords, falling back to
// the first 20 lines. ISO dates win over d.m.yyyy forms.
func extractDueDate(text string) *time.Time {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	var searchPool []string
	for _, line := range lines {
		if dueDateKeywordRE.MatchString(line) {
			searchPool = append(searchPool, line)
		}
	}
	if len(searchPool) == 0 {
		if len(lines) > 20 {
			lines = lines[:20]
		}
		searchPool = lines
	}

	for _, line := range searchPool {
		if m := isoDateRE.FindStringSubmatch(line); m != nil {
			if d := validDate(m[1], m[2], m[3]); d != nil {
				return d
			}
		}
		if m := localDateRE.FindStringSubmatch(line); m != nil {
			if d := validDate(m[3], m[2], m[1]); d != nil {
				return d
			}
		}
	}
	return nil
}

// validDate builds a UTC date from string components and rejects values the
// calendar normalized away (like month 13 or Feb 30).
func validDate(year, month, day string) *time.Time {
	var y, m, d int
	if _, err := fmt.Sscanf(year+"-"+month+"-"+day, "%d-%d-%d", &y, &m, &d); err != nil {
		return nil
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return nil
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != time.Month(m) || t.Day() != d {
		return nil
	}
	return &t
}

// buildInvoiceName derives a display name from the subject, or the sender
// when the subject is empty.
func buildInvoiceName(subject, sender string) string {
	name := strings.TrimSpace(subject)
	if name == "" {
		if sender := strings.TrimSpace(sender); sender != "" {
			name = "Gmail invoice - " + sender
		} else {
			name = "Gmail invoice"
		}
	}
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
