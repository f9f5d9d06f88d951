package recurringinvoices

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Errors for recurring invoice operations
var (
	ErrTemplateNotFound  = errors.New("recurring invoice not found")
	ErrNameRequired      = errors.New("name is required")
	ErrAmountRequired    = errors.New("amount is required")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidDayOfMonth = errors.New("day_of_month must be between 1 and 31")
	ErrInvalidMonths     = errors.New("months must be between 1 and 24")
)

// Template is a recurring invoice definition. Once a month, on DayOfMonth
// (clamped to the month's last day), the generator materializes an unpaid
// invoice from it.
type Template struct {
	ID            string
	Name          string
	Amount        decimal.Decimal
	Currency      string
	DayOfMonth    int
	IsActive      bool
	LastGenerated *time.Time // due date of the newest invoice generated from this template
	CreatedAt     time.Time
}

// MarshalJSON renders dates as YYYY-MM-DD and the amount as a plain number.
func (t *Template) MarshalJSON() ([]byte, error) {
	var lastGenerated *string
	if t.LastGenerated != nil {
		s := t.LastGenerated.Format("2006-01-02")
		lastGenerated = &s
	}
	return json.Marshal(struct {
		ID            string      `json:"id"`
		Name          string      `json:"name"`
		Amount        json.Number `json:"amount"`
		Currency      string      `json:"currency"`
		DayOfMonth    int         `json:"day_of_month"`
		IsActive      bool        `json:"is_active"`
		LastGenerated *string     `json:"last_generated"`
		CreatedAt     string      `json:"created_at"`
	}{
		ID:            t.ID,
		Name:          t.Name,
		Amount:        json.Number(t.Amount.StringFixed(2)),
		Currency:      t.Currency,
		DayOfMonth:    t.DayOfMonth,
		IsActive:      t.IsActive,
		LastGenerated: lastGenerated,
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// CreateTemplateInput represents input for creating a template
type CreateTemplateInput struct {
	Name       string           `json:"name"`
	Amount     *decimal.Decimal `json:"amount"`
	Currency   string           `json:"currency"`
	DayOfMonth *int             `json:"day_of_month"`
}

// Validate validates the create template input
func (i *CreateTemplateInput) Validate() error {
	i.Name = strings.TrimSpace(i.Name)
	if i.Name == "" {
		return ErrNameRequired
	}
	if i.Amount == nil {
		return ErrAmountRequired
	}
	if !i.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if i.DayOfMonth == nil {
		return errors.New("day_of_month is required")
	}
	if *i.DayOfMonth < 1 || *i.DayOfMonth > 31 {
		return ErrInvalidDayOfMonth
	}
	return nil
}

// UpdateTemplateInput represents input for a partial template update.
// Nil fields are left untouched.
type UpdateTemplateInput struct {
	Name       *string          `json:"name,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Currency   *string          `json:"currency,omitempty"`
	DayOfMonth *int             `json:"day_of_month,omitempty"`
}

// Validate validates the update template input
func (i *UpdateTemplateInput) Validate() error {
	if i.Name != nil && strings.TrimSpace(*i.Name) == "" {
		return errors.New("name cannot be empty")
	}
	if i.Amount != nil && !i.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if i.DayOfMonth != nil && (*i.DayOfMonth < 1 || *i.DayOfMonth > 31) {
		return ErrInvalidDayOfMonth
	}
	return nil
}

// GenerationStats aggregates the outcome of one generation run.
type GenerationStats struct {
	Generated          int `json:"generated"`
	SkippedExisting    int `json:"skipped_existing"`
	SkippedPaused      int `json:"skipped_paused"`
	SkippedNotDue      int `json:"skipped_not_due"`
	ProcessedTemplates int `json:"processed_templates"`
}

// GenerationStore is the storage view one generation run operates on. All
// methods execute inside the same transaction; nothing persists if the run
// callback returns an error.
type GenerationStore interface {
	// ListTemplatesForUpdate returns every template (active and paused) in
	// stable id order, with the rows locked for the rest of the transaction.
	ListTemplatesForUpdate(ctx context.Context) ([]*Template, error)
	RecurringInvoiceExists(ctx context.Context, templateID string, dueDate time.Time) (bool, error)
	InsertRecurringInvoice(ctx context.Context, template *Template, dueDate time.Time) error
	AdvanceWatermark(ctx context.Context, templateID string, lastGenerated time.Time) error
}

// Repository defines the interface for recurring invoice data access
type Repository interface {
	Create(ctx context.Context, input *CreateTemplateInput) (*Template, error)
	GetByID(ctx context.Context, id string) (*Template, error)
	List(ctx context.Context) ([]*Template, error)
	Update(ctx context.Context, id string, input *UpdateTemplateInput) (*Template, error)
	TogglePause(ctx context.Context, id string) (*Template, error)
	Delete(ctx context.Context, id string) error

	// ExistingDueDates reports which of the given due dates already have a
	// recurring-origin invoice for the template. Used to annotate forecasts.
	ExistingDueDates(ctx context.Context, templateID string, dueDates []time.Time) (map[string]bool, error)

	// InTx runs fn inside a single transaction, committing only if fn
	// returns nil. The generator funnels every run through this.
	InTx(ctx context.Context, fn func(ctx context.Context, store GenerationStore) error) error
}
