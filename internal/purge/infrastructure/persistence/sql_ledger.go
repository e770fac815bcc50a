package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/migrations"
)

// SQLLedger stores entries in the deleted_items table. Every Append is its
// own committed statement, so Flush has nothing to do.
type SQLLedger struct {
	conn   database.Connection
	logger *slog.Logger
}

// NewSQLLedger migrates the schema if needed.
func NewSQLLedger(ctx context.Context, conn database.Connection, logger *slog.Logger) (*SQLLedger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := migrations.Run(ctx, conn); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &SQLLedger{conn: conn, logger: logger}, nil
}

func (l *SQLLedger) Load(ctx context.Context) (map[string]struct{}, error) {
	rows, err := l.conn.Query(ctx, `SELECT id FROM deleted_items`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ledger id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	l.logger.DebugContext(ctx, "ledger loaded", "driver", l.conn.Driver().String(), "entries", len(ids))
	return ids, nil
}

func (l *SQLLedger) Append(ctx context.Context, entry domain.LedgerEntry) error {
	query := database.Rebind(l.conn.Driver(),
		`INSERT INTO deleted_items (id, text, created_at, deleted_at) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`)
	_, err := l.conn.Exec(ctx, query,
		entry.ID,
		entry.Text,
		entry.CreatedAt,
		entry.DeletedAt.UTC().Format(ledgerTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (l *SQLLedger) Flush(ctx context.Context) error {
	return nil
}

// Entries returns every entry ordered by deletion time.
func (l *SQLLedger) Entries(ctx context.Context) ([]domain.LedgerEntry, error) {
	rows, err := l.conn.Query(ctx, `SELECT id, text, created_at, deleted_at FROM deleted_items ORDER BY deleted_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			e         domain.LedgerEntry
			deletedAt string
		)
		if err := rows.Scan(&e.ID, &e.Text, &e.CreatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, deletedAt); err == nil {
			e.DeletedAt = t.UTC()
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *SQLLedger) Close() error {
	return l.conn.Close()
}
