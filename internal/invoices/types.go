package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Errors for invoice operations
var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrNameRequired    = errors.New("name is required")
	ErrAmountRequired  = errors.New("amount is required")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrDueDateRequired = errors.New("due date is required")
	ErrInvalidDueDate  = errors.New("due date must be YYYY-MM-DD format")
	ErrNoIBAN          = errors.New("no IBAN available for this invoice")
)

// Invoice is a single payable item, created manually, imported from Gmail,
// or generated from a recurring template.
type Invoice struct {
	ID                 string
	GmailAccountID     *string
	GmailAccountEmail  *string // joined from gmail_accounts, read only
	Name               string
	Amount             decimal.Decimal
	Currency           string
	DueDate            time.Time
	Paid               bool
	PaidDate           *time.Time
	PaymentLink        *string
	SourceRef          *string // "gmail:<message id>" for imported invoices
	IBAN               *string
	IsRecurring        bool
	RecurringInvoiceID *string
	CreatedAt          time.Time
}

// MarshalJSON renders the due date as YYYY-MM-DD, the amount as a plain
// number, and adds the has_qr / has_payment_link convenience flags.
func (i *Invoice) MarshalJSON() ([]byte, error) {
	var paidDate *string
	if i.PaidDate != nil {
		s := i.PaidDate.UTC().Format(time.RFC3339)
		paidDate = &s
	}
	return json.Marshal(struct {
		ID                 string      `json:"id"`
		GmailAccountID     *string     `json:"gmail_account_id"`
		GmailAccountEmail  *string     `json:"gmail_account_email"`
		Name               string      `json:"name"`
		Amount             json.Number `json:"amount"`
		Currency           string      `json:"currency"`
		DueDate            string      `json:"due_date"`
		Paid               bool        `json:"paid"`
		PaidDate           *string     `json:"paid_date"`
		PaymentLink        *string     `json:"payment_link"`
		SourceRef          *string     `json:"source_ref"`
		IBAN               *string     `json:"iban"`
		IsRecurring        bool        `json:"is_recurring"`
		RecurringInvoiceID *string     `json:"recurring_invoice_id"`
		CreatedAt          string      `json:"created_at"`
		HasQR              bool        `json:"has_qr"`
		HasPaymentLink     bool        `json:"has_payment_link"`
	}{
		ID:                 i.ID,
		GmailAccountID:     i.GmailAccountID,
		GmailAccountEmail:  i.GmailAccountEmail,
		Name:               i.Name,
		Amount:             json.Number(i.Amount.StringFixed(2)),
		Currency:           i.Currency,
		DueDate:            i.DueDate.Format("2006-01-02"),
		Paid:               i.Paid,
		PaidDate:           paidDate,
		PaymentLink:        i.PaymentLink,
		SourceRef:          i.SourceRef,
		IBAN:               i.IBAN,
		IsRecurring:        i.IsRecurring,
		RecurringInvoiceID: i.RecurringInvoiceID,
		CreatedAt:          i.CreatedAt.UTC().Format(time.RFC3339),
		HasQR:              i.IBAN != nil,
		HasPaymentLink:     i.PaymentLink != nil,
	})
}

// CreateInvoiceInput represents input for creating a manual invoice
type CreateInvoiceInput struct {
	Name           string           `json:"name"`
	Amount         *decimal.Decimal `json:"amount"`
	Currency       string           `json:"currency"`
	DueDate        string           `json:"due_date"`
	GmailAccountID *string          `json:"gmail_account_id"`
	PaymentLink    *string          `json:"payment_link"`
	IBAN           *string          `json:"iban"`
}

// Validate validates the input and returns the parsed due date.
func (i *CreateInvoiceInput) Validate() (time.Time, error) {
	i.Name = strings.TrimSpace(i.Name)
	if i.Name == "" {
		return time.Time{}, ErrNameRequired
	}
	if i.Amount == nil {
		return time.Time{}, ErrAmountRequired
	}
	if !i.Amount.IsPositive() {
		return time.Time{}, ErrInvalidAmount
	}
	if i.DueDate == "" {
		return time.Time{}, ErrDueDateRequired
	}
	dueDate, err := time.ParseInLocation("2006-01-02", i.DueDate, time.UTC)
	if err != nil {
		return time.Time{}, ErrInvalidDueDate
	}
	return dueDate, nil
}

// ImportInput is an invoice parsed out of an email message.
type ImportInput struct {
	GmailAccountID string
	Name           string
	Amount         decimal.Decimal
	Currency       string
	DueDate        time.Time
	PaymentLink    *string
	SourceRef      string
}

// ListFilters narrows the invoice listing.
type ListFilters struct {
	Status    string // "all", "unpaid" or "paid"
	AccountID *string
	Limit     int
	Offset    int
}

// Repository defines the interface for invoice data access
type Repository interface {
	List(ctx context.Context, filters *ListFilters) ([]*Invoice, error)
	GetByID(ctx context.Context, id string) (*Invoice, error)
	Create(ctx context.Context, input *CreateInvoiceInput, dueDate time.Time) (*Invoice, error)
	MarkPaid(ctx context.Context, id string) (*Invoice, error)
	Delete(ctx context.Context, id string) error

	// Import inserts an invoice parsed from an email message.
	Import(ctx context.Context, input *ImportInput) (*Invoice, error)
	// ExistsBySourceRef reports whether a message was already imported.
	ExistsBySourceRef(ctx context.Context, sourceRef string) (bool, error)
}
