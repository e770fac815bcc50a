// Package application runs a purge: it acquires candidate items, filters
// them, and deletes them one at a time under the remote rate limit while
// keeping a durable ledger of what is already gone.
package application

import (
	"context"
	"time"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
)

// Page is one page of the account timeline.
type Page struct {
	Items     []domain.Item
	NextToken string
}

// PageFetcher reads the account timeline page by page.
type PageFetcher interface {
	FetchPage(ctx context.Context, userID string, pageSize int, token string) (Page, error)
}

// Deleter issues the destructive call for a single item.
type Deleter interface {
	DeleteItem(ctx context.Context, id string) error
}

// ItemSource produces the candidate items for a run.
type ItemSource interface {
	Items(ctx context.Context) ([]domain.Item, error)
}

// Ledger is the durable, append-only record of deleted items.
type Ledger interface {
	// Load returns the ids already recorded. It must be called before Append.
	Load(ctx context.Context) (map[string]struct{}, error)
	// Append records an entry. Appending an id twice is a no-op.
	Append(ctx context.Context, entry domain.LedgerEntry) error
	// Flush makes every appended entry durable.
	Flush(ctx context.Context) error
	Close() error
}

// CacheStore keeps the provisional snapshot of fetched items for a session.
type CacheStore interface {
	// Load returns the cached items, or nil when nothing is cached.
	Load(ctx context.Context, session string) ([]domain.Item, error)
	Save(ctx context.Context, session string, items []domain.Item) error
}

// Confirmer asks the operator a question and reports the answer.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f(ctx, d).
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}
