package recurringinvoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const templateColumns = `id, name, amount, currency, day_of_month, is_active, last_generated, created_at`

// repository implements Repository using PostgreSQL
type repository struct {
	pool            *pgxpool.Pool
	defaultCurrency string
}

// NewRepository creates a new recurring invoices repository
func NewRepository(pool *pgxpool.Pool, defaultCurrency string) Repository {
	return &repository{pool: pool, defaultCurrency: defaultCurrency}
}

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Amount,
		&t.Currency,
		&t.DayOfMonth,
		&t.IsActive,
		&t.LastGenerated,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create creates a new recurring invoice template
func (r *repository) Create(ctx context.Context, input *CreateTemplateInput) (*Template, error) {
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = r.defaultCurrency
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO recurring_invoices (name, amount, currency, day_of_month)
		VALUES ($1, $2, $3, $4)
		RETURNING `+templateColumns,
		input.Name, *input.Amount, currency, *input.DayOfMonth,
	)
	return scanTemplate(row)
}

// GetByID retrieves a template by ID
func (r *repository) GetByID(ctx context.Context, id string) (*Template, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM recurring_invoices
		WHERE id = $1
	`, id)
	return scanTemplate(row)
}

// List retrieves all templates ordered by name
func (r *repository) List(ctx context.Context) ([]*Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM recurring_invoices
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}

// Update applies a partial update and returns the updated template
func (r *repository) Update(ctx context.Context, id string, input *UpdateTemplateInput) (*Template, error) {
	var setClauses []string
	var args []interface{}
	argIndex := 1

	if input.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argIndex))
		args = append(args, strings.TrimSpace(*input.Name))
		argIndex++
	}
	if input.Amount != nil {
		setClauses = append(setClauses, fmt.Sprintf("amount = $%d", argIndex))
		args = append(args, *input.Amount)
		argIndex++
	}
	if input.Currency != nil {
		setClauses = append(setClauses, fmt.Sprintf("currency = $%d", argIndex))
		args = append(args, strings.ToUpper(strings.TrimSpace(*input.Currency)))
		argIndex++
	}
	if input.DayOfMonth != nil {
		setClauses = append(setClauses, fmt.Sprintf("day_of_month = $%d", argIndex))
		args = append(args, *input.DayOfMonth)
		argIndex++
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE recurring_invoices
		SET %s
		WHERE id = $%d
		RETURNING `+templateColumns,
		strings.Join(setClauses, ", "), argIndex)

	return scanTemplate(r.pool.QueryRow(ctx, query, args...))
}

// TogglePause flips is_active and returns the updated template
func (r *repository) TogglePause(ctx context.Context, id string) (*Template, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE recurring_invoices
		SET is_active = NOT is_active
		WHERE id = $1
		RETURNING `+templateColumns,
		id)
	return scanTemplate(row)
}

// Delete deletes a template. Invoices generated from it survive with their
// recurring_invoice_id cleared by the schema's ON DELETE SET NULL.
func (r *repository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM recurring_invoices
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// ExistingDueDates reports which of the given due dates already have a
// recurring-origin invoice for the template, keyed by YYYY-MM-DD.
func (r *repository) ExistingDueDates(ctx context.Context, templateID string, dueDates []time.Time) (map[string]bool, error) {
	existing := make(map[string]bool, len(dueDates))
	if len(dueDates) == 0 {
		return existing, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT due_date
		FROM invoices
		WHERE is_recurring = true
		  AND recurring_invoice_id = $1
		  AND due_date = ANY($2)
	`, templateID, dueDates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var dueDate time.Time
		if err := rows.Scan(&dueDate); err != nil {
			return nil, err
		}
		existing[dueDate.Format("2006-01-02")] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return existing, nil
}

// InTx runs fn against a transactional GenerationStore, committing only if fn
// returns nil.
func (r *repository) InTx(ctx context.Context, fn func(ctx context.Context, store GenerationStore) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// txStore implements GenerationStore on top of one pgx transaction.
type txStore struct {
	tx pgx.Tx
}

// ListTemplatesForUpdate returns all templates in id order with their rows
// locked, so concurrent generation runs serialize per template.
func (s *txStore) ListTemplatesForUpdate(ctx context.Context) ([]*Template, error) {
	rows, err := s.tx.Query(ctx, `
		SELECT `+templateColumns+`
		FROM recurring_invoices
		ORDER BY id ASC
		FOR UPDATE
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}

func (s *txStore) RecurringInvoiceExists(ctx context.Context, templateID string, dueDate time.Time) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE is_recurring = true
			  AND recurring_invoice_id = $1
			  AND due_date = $2
		)
	`, templateID, dueDate).Scan(&exists)
	return exists, err
}

func (s *txStore) InsertRecurringInvoice(ctx context.Context, template *Template, dueDate time.Time) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO invoices (name, amount, currency, due_date, paid, is_recurring, recurring_invoice_id)
		VALUES ($1, $2, $3, $4, false, true, $5)
	`, template.Name, template.Amount, template.Currency, dueDate, template.ID)
	return err
}

func (s *txStore) AdvanceWatermark(ctx context.Context, templateID string, lastGenerated time.Time) error {
	_, err := s.tx.Exec(ctx, `
		UPDATE recurring_invoices
		SET last_generated = $1
		WHERE id = $2
	`, lastGenerated, templateID)
	return err
}
