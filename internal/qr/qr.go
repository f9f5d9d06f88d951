// Package qr renders EPC069-12 payment QR codes, the format most European
// banking apps scan for SEPA credit transfers.
package qr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

// ErrIBANRequired is returned when no IBAN is supplied.
var ErrIBANRequired = errors.New("iban is required")

const pngSize = 256

// PaymentQR renders a PNG QR code encoding an EPC credit transfer to the
// given IBAN. reference falls back to name when empty, since the EPC format
// requires a remittance text.
func PaymentQR(name, iban string, amount decimal.Decimal, currency, reference string) ([]byte, error) {
	iban = strings.ReplaceAll(strings.TrimSpace(iban), " ", "")
	if iban == "" {
		return nil, ErrIBANRequired
	}
	if reference = strings.TrimSpace(reference); reference == "" {
		reference = name
	}

	payload := encodePayload(name, iban, amount, currency, reference)
	return qrcode.Encode(payload, qrcode.Medium, pngSize)
}

// encodePayload builds the EPC069-12 version 002 payload. Line order is
// fixed: service tag, version, charset (1 = UTF-8), identification, BIC
// (empty in v002), name, IBAN, amount, purpose, structured reference,
// remittance text, information.
func encodePayload(name, iban string, amount decimal.Decimal, currency, reference string) string {
	lines := []string{
		"BCD",
		"002",
		"1",
		"SCT",
		"",
		name,
		iban,
		fmt.Sprintf("%s%s", strings.ToUpper(currency), amount.StringFixed(2)),
		"",
		"",
		reference,
		"",
	}
	return strings.Join(lines, "\n")
}
