package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const invoiceColumns = `
	i.id, i.gmail_account_id, a.email,
	i.name, i.amount, i.currency, i.due_date,
	i.paid, i.paid_date, i.payment_link, i.source_ref, i.iban,
	i.is_recurring, i.recurring_invoice_id, i.created_at`

const invoiceFrom = `
	FROM invoices i
	LEFT JOIN gmail_accounts a ON i.gmail_account_id = a.id`

// repository implements Repository using PostgreSQL
type repository struct {
	pool            *pgxpool.Pool
	defaultCurrency string
}

// NewRepository creates a new invoices repository
func NewRepository(pool *pgxpool.Pool, defaultCurrency string) Repository {
	return &repository{pool: pool, defaultCurrency: defaultCurrency}
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID,
		&inv.GmailAccountID,
		&inv.GmailAccountEmail,
		&inv.Name,
		&inv.Amount,
		&inv.Currency,
		&inv.DueDate,
		&inv.Paid,
		&inv.PaidDate,
		&inv.PaymentLink,
		&inv.SourceRef,
		&inv.IBAN,
		&inv.IsRecurring,
		&inv.RecurringInvoiceID,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// List retrieves invoices ordered by due date descending
func (r *repository) List(ctx context.Context, filters *ListFilters) ([]*Invoice, error) {
	query := `SELECT ` + invoiceColumns + invoiceFrom

	var conditions []string
	var args []interface{}
	argIndex := 1

	limit := 100
	offset := 0
	if filters != nil {
		switch filters.Status {
		case "unpaid":
			conditions = append(conditions, "i.paid = false")
		case "paid":
			conditions = append(conditions, "i.paid = true")
		}
		if filters.AccountID != nil {
			conditions = append(conditions, fmt.Sprintf("i.gmail_account_id = $%d", argIndex))
			args = append(args, *filters.AccountID)
			argIndex++
		}
		if filters.Limit > 0 {
			limit = filters.Limit
		}
		if filters.Offset > 0 {
			offset = filters.Offset
		}
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY i.due_date DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invoices, nil
}

// GetByID retrieves an invoice by ID
func (r *repository) GetByID(ctx context.Context, id string) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+invoiceFrom+` WHERE i.id = $1`, id)
	return scanInvoice(row)
}

// Create inserts a manual invoice
func (r *repository) Create(ctx context.Context, input *CreateInvoiceInput, dueDate time.Time) (*Invoice, error) {
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = r.defaultCurrency
	}

	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (gmail_account_id, name, amount, currency, due_date, paid, payment_link, iban, is_recurring)
		VALUES ($1, $2, $3, $4, $5, false, $6, $7, false)
		RETURNING id
	`, input.GmailAccountID, input.Name, *input.Amount, currency, dueDate, input.PaymentLink, input.IBAN).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// MarkPaid marks an invoice as paid and stamps paid_date
func (r *repository) MarkPaid(ctx context.Context, id string) (*Invoice, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET paid = true, paid_date = $1
		WHERE id = $2
	`, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected() == 0 {
		return nil, ErrInvoiceNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete deletes an invoice
func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM invoices
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// Import inserts an invoice parsed from an email message
func (r *repository) Import(ctx context.Context, input *ImportInput) (*Invoice, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (gmail_account_id, name, amount, currency, due_date, paid, payment_link, source_ref, is_recurring)
		VALUES ($1, $2, $3, $4, $5, false, $6, $7, false)
		RETURNING id
	`, input.GmailAccountID, input.Name, input.Amount, input.Currency, input.DueDate, input.PaymentLink, input.SourceRef).Scan(&id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// ExistsBySourceRef reports whether a message was already imported
func (r *repository) ExistsBySourceRef(ctx context.Context, sourceRef string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM invoices WHERE source_ref = $1)
	`, sourceRef).Scan(&exists)
	return exists, err
}
