// Package gmailsync imports invoices from Gmail messages. Messages arrive
// through the MessageSource interface; the OAuth dance and the Gmail HTTP
// client live behind it and are not part of this repo.
package gmailsync

import (
	"context"
	"time"

	"github.com/gaborv/szamla/backend/internal/invoices"
)

// Message is one email message as seen by the parser.
type Message struct {
	ID         string
	ThreadID   string
	Subject    string
	From       string
	DateHeader string
	Snippet    string
	Body       string
}

// MessageSource lists messages matching a Gmail search query.
type MessageSource interface {
	ListMessages(ctx context.Context, query string, maxResults int) ([]*Message, error)
}

// NoopSource is a MessageSource with no messages. It keeps the sync endpoint
// functional when no real Gmail client is wired in.
type NoopSource struct{}

func (NoopSource) ListMessages(ctx context.Context, query string, maxResults int) ([]*Message, error) {
	return nil, nil
}

// MessagePreview is the per-message diagnostic block in the sync report.
type MessagePreview struct {
	ID               string  `json:"id"`
	ThreadID         string  `json:"thread_id"`
	Subject          string  `json:"subject"`
	From             string  `json:"from"`
	Date             string  `json:"date"`
	Snippet          string  `json:"snippet"`
	HasPaymentLink   bool    `json:"has_payment_link"`
	HasInvoiceHint   bool    `json:"has_invoice_hint"`
	AmountGuess      *string `json:"amount_guess"`
	CurrencyGuess    string  `json:"currency_guess"`
	PaymentLinkGuess *string `json:"payment_link_guess"`
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	SyncID                 string              `json:"sync_id"`
	AccountID              string              `json:"account_id"`
	Email                  string              `json:"email"`
	LabelName              string              `json:"label_name"`
	GmailQuery             string              `json:"gmail_query"`
	EffectiveQuery         string              `json:"effective_query"`
	ScannedMessages        int                 `json:"scanned_messages"`
	PaymentLinkHits        int                 `json:"payment_link_hits"`
	InvoiceHintHits        int                 `json:"invoice_hint_hits"`
	ImportedInvoices       int                 `json:"imported_invoices"`
	SkippedNoAmount        int                 `json:"skipped_no_amount"`
	SkippedDuplicates      int                 `json:"skipped_duplicates"`
	ImportedInvoiceSamples []*invoices.Invoice `json:"imported_invoice_samples"`
	SampleMessages         []*MessagePreview   `json:"sample_messages"`
	SyncedAt               time.Time           `json:"synced_at"`
}
