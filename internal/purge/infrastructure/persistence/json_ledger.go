// Package persistence stores the deletion ledger and the fetch cache.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/security"
)

// DefaultLedgerPath is the ledger file used when nothing else is configured.
const DefaultLedgerPath = "deleted_tweets_log.json"

// ledgerRecord is the on-disk form. deleted_at is kept as a string so files
// written with a naive ISO timestamp still load.
type ledgerRecord struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at,omitempty"`
	DeletedAt string `json:"deleted_at"`
}

// ledgerTimeLayout writes deleted_at as UTC RFC 3339 with microseconds. It
// is fixed width so values sort as text in both backends.
const ledgerTimeLayout = "2006-01-02T15:04:05.000000Z"

var deletedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseDeletedAt(value string) time.Time {
	for _, layout := range deletedAtLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// JSONLedger keeps the ledger in memory and rewrites the whole file on
// every Flush.
type JSONLedger struct {
	path    string
	entries []domain.LedgerEntry
	index   map[string]struct{}
	loaded  bool
	dirty   bool
	logger  *slog.Logger
}

// NewJSONLedger creates a ledger backed by the file at path.
func NewJSONLedger(path string, logger *slog.Logger) *JSONLedger {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = DefaultLedgerPath
	}
	return &JSONLedger{path: path, logger: logger}
}

// Path returns the ledger file location.
func (l *JSONLedger) Path() string {
	return l.path
}

// Load reads the file. A missing file is an empty ledger; a corrupt file is
// an error so it is never overwritten.
func (l *JSONLedger) Load(ctx context.Context) (map[string]struct{}, error) {
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(l.index))
	for id := range l.index {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (l *JSONLedger) load(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	l.index = make(map[string]struct{})
	l.entries = nil

	data, err := security.SafeReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.loaded = true
			return nil
		}
		return fmt.Errorf("read ledger: %w", err)
	}

	var records []ledgerRecord
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("decode ledger %s: %w", l.path, err)
		}
	}
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, ok := l.index[r.ID]; ok {
			continue
		}
		l.index[r.ID] = struct{}{}
		l.entries = append(l.entries, domain.LedgerEntry{
			ID:        r.ID,
			Text:      r.Text,
			CreatedAt: r.CreatedAt,
			DeletedAt: parseDeletedAt(r.DeletedAt),
		})
	}
	l.loaded = true
	l.logger.DebugContext(ctx, "ledger loaded", "path", l.path, "entries", len(l.entries))
	return nil
}

// Append adds entry unless its id is already present.
func (l *JSONLedger) Append(ctx context.Context, entry domain.LedgerEntry) error {
	if err := l.load(ctx); err != nil {
		return err
	}
	if _, ok := l.index[entry.ID]; ok {
		return nil
	}
	l.index[entry.ID] = struct{}{}
	l.entries = append(l.entries, entry)
	l.dirty = true
	return nil
}

// Flush atomically replaces the file with the current entries.
func (l *JSONLedger) Flush(ctx context.Context) error {
	if !l.dirty {
		return nil
	}
	records := make([]ledgerRecord, 0, len(l.entries))
	for _, e := range l.entries {
		records = append(records, ledgerRecord{
			ID:        e.ID,
			Text:      e.Text,
			CreatedAt: e.CreatedAt,
			DeletedAt: e.DeletedAt.UTC().Format(ledgerTimeLayout),
		})
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := security.WriteFileAtomic(l.path, data, 0o600); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	l.dirty = false
	return nil
}

// Entries returns the ledger in append order.
func (l *JSONLedger) Entries(ctx context.Context) ([]domain.LedgerEntry, error) {
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	return append([]domain.LedgerEntry(nil), l.entries...), nil
}

// Close flushes pending entries.
func (l *JSONLedger) Close() error {
	return l.Flush(context.Background())
}
