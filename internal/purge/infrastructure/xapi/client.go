// Package xapi talks to the X API v2 on behalf of the authenticated account.
package xapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/tweetsweep/internal/purge/application"
	"github.com/felixgeelhaar/tweetsweep/internal/purge/domain"
)

// DefaultBaseURL is the public API host.
const DefaultBaseURL = "https://api.x.com"

const (
	minPageSize = 5
	maxPageSize = 100
)

// Config tunes the HTTP client and its circuit breaker.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32
	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		BreakerTimeout:   60 * time.Second,
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
	kind       error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("x api: status=%d", e.StatusCode)
	if e.Title != "" {
		msg += " title=" + e.Title
	}
	if e.Detail != "" {
		msg += " detail=" + e.Detail
	}
	return msg
}

// Status returns the HTTP status code.
func (e *APIError) Status() int {
	return e.StatusCode
}

// Problem returns the title and detail the API sent.
func (e *APIError) Problem() string {
	return strings.TrimSpace(e.Title + " " + e.Detail)
}

// Unwrap exposes the domain sentinel for the status code.
func (e *APIError) Unwrap() error {
	return e.kind
}

// Client implements the page fetch and delete calls.
type Client struct {
	http    *http.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

var (
	_ application.PageFetcher = (*Client)(nil)
	_ application.Deleter     = (*Client)(nil)
)

// NewClient creates a client that authenticates every request with tokens
// from source.
func NewClient(source oauth2.TokenSource, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaults.BreakerTimeout
	}

	c := &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &bearerTransport{
				base:   http.DefaultTransport,
				source: oauth2.ReuseTokenSource(nil, source),
			},
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "xapi",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c
}

// bearerTransport signs requests with the current access token. It has no
// CancelRequest method, so client timeouts go through the request context.
type bearerTransport struct {
	base   http.RoundTripper
	source oauth2.TokenSource
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, fmt.Errorf("obtain access token: %w", err)
	}
	signed := req.Clone(req.Context())
	token.SetAuthHeader(signed)
	return t.base.RoundTrip(signed)
}

// isBreakerSuccess keeps answers the API gave on purpose (missing tweet,
// rate limit, quota) and caller cancellations from tripping the breaker.
func isBreakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, domain.ErrQuotaExhausted) ||
		errors.Is(err, context.Canceled)
}

// CurrentUser returns the account the token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	body, err := c.do(ctx, http.MethodGet, "/2/users/me", nil)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	var resp struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.User{}, fmt.Errorf("%w: decode user: %w", domain.ErrUnauthenticated, err)
	}
	if resp.Data.ID == "" {
		return domain.User{}, fmt.Errorf("%w: empty user id", domain.ErrUnauthenticated)
	}
	return domain.User{ID: resp.Data.ID, Handle: resp.Data.Username}, nil
}

// FetchPage reads one page of the user's timeline.
func (c *Client) FetchPage(ctx context.Context, userID string, pageSize int, token string) (application.Page, error) {
	pageSize = max(minPageSize, min(pageSize, maxPageSize))

	query := url.Values{}
	query.Set("max_results", strconv.Itoa(pageSize))
	query.Set("tweet.fields", "created_at,text")
	if token != "" {
		query.Set("pagination_token", token)
	}

	body, err := c.do(ctx, http.MethodGet, "/2/users/"+url.PathEscape(userID)+"/tweets", query)
	if err != nil {
		return application.Page{}, err
	}

	var resp struct {
		Data []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			CreatedAt string `json:"created_at"`
		} `json:"data"`
		Meta struct {
			NextToken string `json:"next_token"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return application.Page{}, fmt.Errorf("decode timeline page: %w", err)
	}

	page := application.Page{
		Items:     make([]domain.Item, 0, len(resp.Data)),
		NextToken: resp.Meta.NextToken,
	}
	for _, t := range resp.Data {
		page.Items = append(page.Items, domain.Item{ID: t.ID, Text: t.Text, CreatedAt: t.CreatedAt})
	}
	return page, nil
}

// DeleteItem deletes one tweet.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	body, err := c.do(ctx, http.MethodDelete, "/2/tweets/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}

	var resp struct {
		Data struct {
			Deleted bool `json:"deleted"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: decode delete response: %w", domain.ErrRequestFailed, err)
	}
	if !resp.Data.Deleted {
		return fmt.Errorf("%w: tweet %s was not deleted", domain.ErrRequestFailed, id)
	}
	return nil
}

// do runs one request through the breaker and returns the body of a 2xx
// response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, query)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransportUnavailable, err)
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if remaining := resp.Header.Get("x-rate-limit-remaining"); remaining != "" {
		c.logger.DebugContext(ctx, "rate limit headers",
			"path", path,
			"remaining", remaining,
			"reset", resp.Header.Get("x-rate-limit-reset"),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp.StatusCode, body)
	}
	return body, nil
}

func responseError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status, kind: domain.ErrRequestFailed}
	switch status {
	case http.StatusNotFound:
		apiErr.kind = domain.ErrNotFound
	case http.StatusTooManyRequests:
		apiErr.kind = domain.ErrRateLimited
	case http.StatusPaymentRequired:
		apiErr.kind = domain.ErrQuotaExhausted
	}

	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &problem) == nil {
		apiErr.Title = problem.Title
		apiErr.Detail = problem.Detail
		if apiErr.Detail == "" && len(problem.Errors) > 0 {
			apiErr.Detail = problem.Errors[0].Message
		}
	} else {
		apiErr.Detail = strings.TrimSpace(string(body))
	}
	return apiErr
}
