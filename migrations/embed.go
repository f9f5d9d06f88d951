// Package migrations embeds the SQL schema and applies it at startup.
package migrations

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Files stores the SQL schema embedded into the binary.
//
//go:embed *.sql
var Files embed.FS

// Apply runs every embedded SQL file against the pool. Statements are
// idempotent, so this is safe to call on every boot.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	entries, err := Files.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, entry := range entries {
		sql, err := Files.ReadFile(entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}
