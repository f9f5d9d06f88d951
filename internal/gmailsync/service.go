package gmailsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gaborv/szamla/backend/internal/gmailaccounts"
	"github.com/gaborv/szamla/backend/internal/invoices"
)

const sampleLimit = 20

// Service runs message sync for one account: list, parse, dedup, import.
type Service struct {
	accounts   gmailaccounts.Repository
	invoices   invoices.Repository
	source     MessageSource
	maxResults int
	logger     *slog.Logger
}

// NewService creates a new sync service
func NewService(
	accounts gmailaccounts.Repository,
	invoiceRepo invoices.Repository,
	source MessageSource,
	maxResults int,
	logger *slog.Logger,
) *Service {
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > 100 {
		maxResults = 100
	}
	return &Service{
		accounts:   accounts,
		invoices:   invoiceRepo,
		source:     source,
		maxResults: maxResults,
		logger:     logger,
	}
}

// SyncAccount fetches messages for the account's saved filter, imports the
// ones that parse into invoices, and stamps last_sync. A message already
// imported (matched on source_ref) is counted as a duplicate, so repeated
// syncs never double-import.
func (s *Service) SyncAccount(ctx context.Context, accountID string) (*SyncReport, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	labelName, gmailQuery := gmailaccounts.ExtractFilterSettings(account.CredentialsJSON)
	effectiveQuery := buildEffectiveQuery(labelName, gmailQuery)

	messages, err := s.source.ListMessages(ctx, effectiveQuery, s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	syncID := uuid.NewString()
	report := &SyncReport{
		SyncID:         syncID,
		AccountID:      account.ID,
		Email:          account.Email,
		LabelName:      labelName,
		GmailQuery:     gmailQuery,
		EffectiveQuery: effectiveQuery,
	}

	for _, msg := range messages {
		report.ScannedMessages++

		combined := strings.TrimSpace(msg.Subject + "\n" + msg.Snippet + "\n" + msg.Body)
		hasPaymentLink := urlRE.MatchString(combined)
		hasInvoiceHint := invoiceHintRE.MatchString(combined)
		if hasPaymentLink {
			report.PaymentLinkHits++
		}
		if hasInvoiceHint {
			report.InvoiceHintHits++
		}

		paymentLink := extractPaymentLink(combined)
		amount, currency := extractAmountAndCurrency(combined)
		dueDate := extractDueDate(combined)
		if dueDate == nil {
			fallback := time.Now().UTC().AddDate(0, 0, 7)
			dueDate = &fallback
		}

		if len(report.SampleMessages) < sampleLimit {
			preview := &MessagePreview{
				ID:               msg.ID,
				ThreadID:         msg.ThreadID,
				Subject:          msg.Subject,
				From:             msg.From,
				Date:             msg.DateHeader,
				Snippet:          msg.Snippet,
				HasPaymentLink:   hasPaymentLink,
				HasInvoiceHint:   hasInvoiceHint,
				CurrencyGuess:    currency,
				PaymentLinkGuess: paymentLink,
			}
			if amount != nil {
				guess := amount.StringFixed(2)
				preview.AmountGuess = &guess
			}
			report.SampleMessages = append(report.SampleMessages, preview)
		}

		if msg.ID == "" {
			continue
		}
		sourceRef := "gmail:" + msg.ID
		exists, err := s.invoices.ExistsBySourceRef(ctx, sourceRef)
		if err != nil {
			return nil, err
		}
		if exists {
			report.SkippedDuplicates++
			continue
		}

		if amount == nil {
			report.SkippedNoAmount++
			continue
		}

		invoice, err := s.invoices.Import(ctx, &invoices.ImportInput{
			GmailAccountID: account.ID,
			Name:           buildInvoiceName(msg.Subject, msg.From),
			Amount:         *amount,
			Currency:       currency,
			DueDate:        *dueDate,
			PaymentLink:    paymentLink,
			SourceRef:      sourceRef,
		})
		if err != nil {
			return nil, fmt.Errorf("import invoice: %w", err)
		}
		report.ImportedInvoices++
		if len(report.ImportedInvoiceSamples) < sampleLimit {
			report.ImportedInvoiceSamples = append(report.ImportedInvoiceSamples, invoice)
		}
	}

	report.SyncedAt = time.Now().UTC()
	if err := s.accounts.TouchLastSync(ctx, account.ID, report.SyncedAt); err != nil {
		return nil, err
	}

	s.logger.Info("gmail sync finished",
		"sync_id", syncID,
		"account_id", account.ID,
		"scanned", report.ScannedMessages,
		"imported", report.ImportedInvoices,
		"skipped_duplicates", report.SkippedDuplicates,
		"skipped_no_amount", report.SkippedNoAmount,
	)
	return report, nil
}
