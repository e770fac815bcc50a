package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Config describes a SQL ledger store.
type Config struct {
	// Driver is detected from URL when empty.
	Driver Driver
	// URL is a postgres:// connection string or a SQLite location.
	URL string
	// MaxConns caps the PostgreSQL pool.
	MaxConns int
}

// NewConnection opens the store described by cfg. The driver package must
// be linked in (blank import of sqlite or postgres) for its driver to exist.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DetectDriver(cfg.URL)
	}

	var open func(context.Context, Config) (Connection, error)
	switch driver {
	case DriverPostgres:
		open = newPostgresConnection
	case DriverSQLite:
		open = newSQLiteConnection
	default:
		return nil, fmt.Errorf("unsupported ledger driver: %s", driver)
	}
	if open == nil {
		return nil, fmt.Errorf("ledger driver %s is not registered", driver)
	}
	return open(ctx, cfg)
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o750)
}

var (
	newPostgresConnection func(ctx context.Context, cfg Config) (Connection, error)
	newSQLiteConnection   func(ctx context.Context, cfg Config) (Connection, error)
)

// RegisterPostgresDriver registers the PostgreSQL connection factory.
func RegisterPostgresDriver(fn func(ctx context.Context, cfg Config) (Connection, error)) {
	newPostgresConnection = fn
}

// RegisterSQLiteDriver registers the SQLite connection factory.
func RegisterSQLiteDriver(fn func(ctx context.Context, cfg Config) (Connection, error)) {
	newSQLiteConnection = fn
}
