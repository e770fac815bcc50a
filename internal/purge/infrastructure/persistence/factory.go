package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/application"
	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/database/postgres"
	_ "github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/database/sqlite"
)

// LedgerStore is a ledger that can also list its entries.
type LedgerStore interface {
	application.Ledger
	Entries(ctx context.Context) ([]domain.LedgerEntry, error)
}

// CacheBackend is a cache that holds a resource.
type CacheBackend interface {
	application.CacheStore
	Close() error
}

// OpenLedger opens the ledger at location: a JSON file path, a SQLite file
// or a postgres:// URL.
func OpenLedger(ctx context.Context, location string, logger *slog.Logger) (LedgerStore, error) {
	if location == "" {
		location = DefaultLedgerPath
	}
	driver := database.DetectDriver(location)
	if !driver.IsSQL() {
		return NewJSONLedger(location, logger), nil
	}

	conn, err := database.NewConnection(ctx, database.Config{Driver: driver, URL: location})
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", driver, err)
	}
	ledger, err := NewSQLLedger(ctx, conn, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ledger, nil
}

// OpenCache opens the fetch cache at location: a JSON file path or a
// redis:// URL.
func OpenCache(ctx context.Context, location string, ttl time.Duration) (CacheBackend, error) {
	if strings.HasPrefix(location, "redis://") || strings.HasPrefix(location, "rediss://") {
		return NewRedisCache(ctx, location, ttl)
	}
	return NewJSONCache(location), nil
}
