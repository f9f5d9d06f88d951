package gmailaccounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, email, is_active, last_sync, credentials_json, created_at`

// repository implements Repository using PostgreSQL
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Gmail accounts repository
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.IsActive,
		&a.LastSync,
		&a.CredentialsJSON,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// List retrieves all accounts ordered by email
func (r *repository) List(ctx context.Context) ([]*Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM gmail_accounts
		ORDER BY email ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetByID retrieves an account by ID
func (r *repository) GetByID(ctx context.Context, id string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM gmail_accounts
		WHERE id = $1
	`, id)
	return scanAccount(row)
}

// Count returns the number of registered accounts
func (r *repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM gmail_accounts`).Scan(&count)
	return count, err
}

// Create registers a new account. The unique index on email surfaces as
// ErrEmailTaken.
func (r *repository) Create(ctx context.Context, input *CreateAccountInput) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO gmail_accounts (email, credentials_json)
		VALUES ($1, $2)
		RETURNING `+accountColumns,
		input.Email, input.CredentialsJSON,
	)
	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return account, nil
}

// UpdateCredentials replaces the credentials blob
func (r *repository) UpdateCredentials(ctx context.Context, id string, credentialsJSON string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE gmail_accounts
		SET credentials_json = $1
		WHERE id = $2
		RETURNING `+accountColumns,
		credentialsJSON, id,
	)
	return scanAccount(row)
}

// Deactivate flips the account inactive
func (r *repository) Deactivate(ctx context.Context, id string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE gmail_accounts
		SET is_active = false
		WHERE id = $1
		RETURNING `+accountColumns,
		id,
	)
	return scanAccount(row)
}

// TouchLastSync stamps last_sync after a sync run
func (r *repository) TouchLastSync(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE gmail_accounts
		SET last_sync = $1
		WHERE id = $2
	`, at, id)
	return err
}
