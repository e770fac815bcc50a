package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
	"github.com/felixgeelhaar/tweetsweep/pkg/observability"
)

// DefaultPageSize is the largest page the timeline endpoint serves.
const DefaultPageSize = 100

// CachePolicy decides what happens when a cached snapshot exists.
type CachePolicy int

const (
	// CacheAsk asks the operator through the configured Confirmer.
	CacheAsk CachePolicy = iota
	// CacheReuse returns the cached snapshot without fetching.
	CacheReuse
	// CacheRefresh ignores the snapshot and fetches from scratch.
	CacheRefresh
)

// RemoteFetchSource pages through the account timeline, persisting the
// accumulated items to the cache after every page.
type RemoteFetchSource struct {
	fetcher   PageFetcher
	cache     CacheStore
	userID    string
	pageSize  int
	policy    CachePolicy
	confirmer Confirmer
	metrics   observability.Metrics
	logger    *slog.Logger
}

// NewRemoteFetchSource creates a source for userID's timeline. The user id
// is also the cache session key.
func NewRemoteFetchSource(fetcher PageFetcher, cache CacheStore, userID string, logger *slog.Logger) *RemoteFetchSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteFetchSource{
		fetcher:  fetcher,
		cache:    cache,
		userID:   userID,
		pageSize: DefaultPageSize,
		policy:   CacheReuse,
		metrics:  observability.NoopMetrics{},
		logger:   logger,
	}
}

// WithPageSize sets the page size. Values outside 1..100 keep the default.
func (s *RemoteFetchSource) WithPageSize(n int) *RemoteFetchSource {
	if n > 0 && n <= DefaultPageSize {
		s.pageSize = n
	}
	return s
}

// WithCachePolicy sets the reuse policy. CacheAsk needs a confirmer; without
// one it behaves like CacheReuse.
func (s *RemoteFetchSource) WithCachePolicy(policy CachePolicy, confirmer Confirmer) *RemoteFetchSource {
	s.policy = policy
	s.confirmer = confirmer
	return s
}

// WithMetrics counts fetched pages into m.
func (s *RemoteFetchSource) WithMetrics(m observability.Metrics) *RemoteFetchSource {
	if m != nil {
		s.metrics = m
	}
	return s
}

// Items returns the cached snapshot or fetches the timeline. A transport
// error mid-fetch ends the fetch and returns what was gathered so far.
func (s *RemoteFetchSource) Items(ctx context.Context) ([]domain.Item, error) {
	if s.cache != nil {
		cached, err := s.cache.Load(ctx, s.userID)
		if err != nil {
			s.logger.WarnContext(ctx, "cache unreadable, fetching fresh", "error", err)
		} else if len(cached) > 0 {
			reuse, err := s.reuseCache(ctx, len(cached))
			if err != nil {
				return nil, err
			}
			if reuse {
				s.logger.InfoContext(ctx, "using cached tweets", "count", len(cached))
				return cached, nil
			}
		}
	}

	return s.fetch(ctx)
}

func (s *RemoteFetchSource) reuseCache(ctx context.Context, count int) (bool, error) {
	switch s.policy {
	case CacheRefresh:
		return false, nil
	case CacheAsk:
		if s.confirmer == nil {
			return true, nil
		}
		ok, err := s.confirmer.Confirm(ctx, fmt.Sprintf("Found %d cached tweets. Use cached tweets?", count))
		if err != nil {
			return false, fmt.Errorf("cache prompt: %w", err)
		}
		return ok, nil
	default:
		return true, nil
	}
}

func (s *RemoteFetchSource) fetch(ctx context.Context) ([]domain.Item, error) {
	var (
		items []domain.Item
		token string
		pages int
	)

	for {
		if err := ctx.Err(); err != nil {
			return items, fmt.Errorf("%w: %w", ErrInterrupted, err)
		}

		page, err := s.fetcher.FetchPage(ctx, s.userID, s.pageSize, token)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return items, fmt.Errorf("%w: %w", ErrInterrupted, ctxErr)
			}
			s.logger.WarnContext(ctx, "fetch stopped, continuing with partial results",
				"error", err,
				"pages", pages,
				"count", len(items),
			)
			return items, nil
		}

		pages++
		s.metrics.Counter(observability.MetricPagesFetched, 1)
		items = append(items, page.Items...)
		s.save(ctx, items)
		s.logger.InfoContext(ctx, "fetched page",
			"page", pages,
			"page_count", len(page.Items),
			"total", len(items),
		)

		if page.NextToken == "" {
			return items, nil
		}
		token = page.NextToken
	}
}

// save persists the accumulator. Failures are logged only.
func (s *RemoteFetchSource) save(ctx context.Context, items []domain.Item) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(ctx, s.userID, items); err != nil {
		s.logger.WarnContext(ctx, "cache save failed", "error", err)
	}
}
