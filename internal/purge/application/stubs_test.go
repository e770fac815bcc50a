package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
)

type stubDeleter struct {
	responses map[string][]error
	calls     []string
}

func newStubDeleter() *stubDeleter {
	return &stubDeleter{responses: make(map[string][]error)}
}

// on queues results for id; once the queue is drained the call succeeds.
func (d *stubDeleter) on(id string, errs ...error) *stubDeleter {
	d.responses[id] = append(d.responses[id], errs...)
	return d
}

func (d *stubDeleter) DeleteItem(ctx context.Context, id string) error {
	d.calls = append(d.calls, id)
	queue := d.responses[id]
	if len(queue) == 0 {
		return nil
	}
	d.responses[id] = queue[1:]
	return queue[0]
}

type memLedger struct {
	ids      map[string]struct{}
	entries  []domain.LedgerEntry
	flushes  int
	loadErr  error
	flushErr error
}

func newMemLedger(ids ...string) *memLedger {
	l := &memLedger{ids: make(map[string]struct{})}
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
	return l
}

func (l *memLedger) Load(ctx context.Context) (map[string]struct{}, error) {
	if l.loadErr != nil {
		return nil, l.loadErr
	}
	out := make(map[string]struct{}, len(l.ids))
	for id := range l.ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (l *memLedger) Append(ctx context.Context, entry domain.LedgerEntry) error {
	if _, ok := l.ids[entry.ID]; ok {
		return nil
	}
	l.ids[entry.ID] = struct{}{}
	l.entries = append(l.entries, entry)
	return nil
}

func (l *memLedger) Flush(ctx context.Context) error {
	if ctx.Err() != nil {
		return errors.New("flush called with cancelled context")
	}
	l.flushes++
	return l.flushErr
}

func (l *memLedger) Close() error { return nil }

func (l *memLedger) has(id string) bool {
	_, ok := l.ids[id]
	return ok
}

type recordingSleeper struct {
	slept []time.Duration
	err   error
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.slept = append(s.slept, d)
	return nil
}

type stubConfirmer struct {
	answer  bool
	err     error
	prompts []string
}

func (c *stubConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	c.prompts = append(c.prompts, prompt)
	return c.answer, c.err
}

type stubPrompter struct {
	answer  string
	err     error
	prompts []string
}

func (p *stubPrompter) Ask(ctx context.Context, prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	return p.answer, p.err
}

type stubFetcher struct {
	pages  []Page
	failAt int
	err    error
	tokens []string
	// cancel, when set, runs just before err is returned.
	cancel context.CancelFunc
}

func (f *stubFetcher) FetchPage(ctx context.Context, userID string, pageSize int, token string) (Page, error) {
	f.tokens = append(f.tokens, token)
	n := len(f.tokens) - 1
	if f.err != nil && n == f.failAt {
		if f.cancel != nil {
			f.cancel()
		}
		return Page{}, f.err
	}
	if n >= len(f.pages) {
		return Page{}, fmt.Errorf("unexpected page %d", n)
	}
	return f.pages[n], nil
}

type memCache struct {
	items map[string][]domain.Item
	saves int
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]domain.Item)}
}

func (c *memCache) Load(ctx context.Context, session string) ([]domain.Item, error) {
	return c.items[session], nil
}

func (c *memCache) Save(ctx context.Context, session string, items []domain.Item) error {
	c.saves++
	c.items[session] = append([]domain.Item(nil), items...)
	return nil
}

func makeItems(n int) []domain.Item {
	items := make([]domain.Item, n)
	for i := range items {
		items[i] = domain.Item{ID: fmt.Sprintf("%d", i+1), Text: fmt.Sprintf("tweet %d", i+1)}
	}
	return items
}
