// Package app wires configuration, storage, transport and the purge
// application together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"

	identityOAuth "github.com/felixgeelhaar/tweetsweep/internal/identity/application/oauth"
	"github.com/felixgeelhaar/tweetsweep/internal/purge/application"
	"github.com/felixgeelhaar/tweetsweep/internal/purge/infrastructure/persistence"
	"github.com/felixgeelhaar/tweetsweep/internal/purge/infrastructure/xapi"
	sharedCrypto "github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/security"
	"github.com/felixgeelhaar/tweetsweep/pkg/config"
	"github.com/felixgeelhaar/tweetsweep/pkg/observability"
)

// Container holds all application dependencies. Storage, broker and
// transport are opened on first use so commands only pay for what they need.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.InMemoryMetrics

	TokenRepo *identityOAuth.FileTokenRepository

	ledger    persistence.LedgerStore
	cache     persistence.CacheBackend
	publisher eventbus.Publisher
	client    *xapi.Client
}

// NewContainer creates a container for cfg.
func NewContainer(cfg *config.Config, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		Config:    cfg,
		Logger:    logger,
		Metrics:   observability.NewInMemoryMetrics(),
		TokenRepo: identityOAuth.NewFileTokenRepository(cfg.TokenFile),
	}
}

// NewLogger builds the process logger from cfg. verbose forces debug level.
func NewLogger(cfg *config.Config, verbose bool, version string) *slog.Logger {
	logCfg := observability.DefaultLogConfig()
	logCfg.Level = observability.LogLevel(cfg.LogLevel)
	if verbose {
		logCfg.Level = observability.LogLevelDebug
	}
	logCfg.Format = observability.LogFormat(cfg.LogFormat)
	logCfg.AddSource = cfg.LogSource
	logCfg.Output = os.Stderr
	if version != "" {
		logCfg.ServiceVersion = version
	}
	return observability.NewLogger(logCfg)
}

// OAuthConfig returns the X app registration from the configuration.
func (c *Container) OAuthConfig() identityOAuth.Config {
	return identityOAuth.Config{
		ClientID:     c.Config.ClientID,
		ClientSecret: c.Config.ClientSecret,
		AuthURL:      c.Config.AuthURL,
		TokenURL:     c.Config.TokenURL,
		RedirectURL:  c.Config.RedirectURL,
		Scopes:       identityOAuth.ScopesFromEnv(c.Config.Scopes),
	}
}

// AuthService creates the OAuth service backed by the token file.
func (c *Container) AuthService() (*identityOAuth.Service, error) {
	if c.Config.EncryptionKey == "" {
		return nil, fmt.Errorf("%w: TWEETSWEEP_ENCRYPTION_KEY is required to store tokens (generate one with 'tweetsweep auth keygen')", identityOAuth.ErrIncompleteConfig)
	}
	encrypter, err := sharedCrypto.NewAESGCMFromBase64Key(c.Config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("TWEETSWEEP_ENCRYPTION_KEY: %w", err)
	}
	return identityOAuth.NewService(c.OAuthConfig(), c.TokenRepo, encrypter, c.Logger)
}

// HasStoredToken reports whether 'auth login' has written a token file.
func (c *Container) HasStoredToken() bool {
	return security.Exists(c.TokenRepo.Path())
}

// TokenSource picks the environment tokens when present and falls back to
// the stored token.
func (c *Container) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	stored := c.HasStoredToken()
	if err := c.Config.Validate(stored); err != nil {
		return nil, err
	}
	if c.Config.HasEnvToken() {
		c.Logger.Debug("using tokens from environment")
		return identityOAuth.EnvTokenSource(ctx, c.OAuthConfig(), c.Config.AccessToken, c.Config.RefreshToken), nil
	}

	service, err := c.AuthService()
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("using stored token", "path", c.TokenRepo.Path())
	return service.TokenSource(ctx)
}

// APIClient returns the X API client, creating it on first use.
func (c *Container) APIClient(ctx context.Context) (*xapi.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	source, err := c.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	c.client = xapi.NewClient(source, xapi.Config{
		BaseURL:          c.Config.APIBaseURL,
		Timeout:          c.Config.HTTPTimeout,
		FailureThreshold: uint32(max(c.Config.BreakerFailureThreshold, 0)),
		BreakerTimeout:   c.Config.BreakerTimeout,
	}, observability.Component(c.Logger, "xapi"))
	return c.client, nil
}

// Ledger opens the deletion ledger at location, or at LEDGER_URL when
// location is empty.
func (c *Container) Ledger(ctx context.Context, location string) (persistence.LedgerStore, error) {
	if c.ledger != nil {
		return c.ledger, nil
	}
	if location == "" {
		location = c.Config.LedgerURL
	}
	ledger, err := persistence.OpenLedger(ctx, location, observability.Component(c.Logger, "ledger"))
	if err != nil {
		return nil, err
	}
	c.ledger = ledger
	return ledger, nil
}

// Cache opens the fetch cache at location, or at CACHE_URL when location
// is empty.
func (c *Container) Cache(ctx context.Context, location string) (persistence.CacheBackend, error) {
	if c.cache != nil {
		return c.cache, nil
	}
	if location == "" {
		location = c.Config.CacheURL
	}
	cache, err := persistence.OpenCache(ctx, location, c.Config.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	c.cache = cache
	return cache, nil
}

// Publisher returns the event publisher. Without RABBITMQ_URL events are
// only logged. A broker that cannot be reached is tolerated in development.
func (c *Container) Publisher() (eventbus.Publisher, error) {
	if c.publisher != nil {
		return c.publisher, nil
	}
	if c.Config.RabbitMQURL == "" {
		c.publisher = eventbus.NewNoopPublisher(c.Logger)
		return c.publisher, nil
	}

	publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return nil, err
		}
		c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		c.publisher = eventbus.NewNoopPublisher(c.Logger)
		return c.publisher, nil
	}
	c.publisher = publisher
	return publisher, nil
}

// Governor creates a rate governor from the configured quota.
func (c *Container) Governor() *application.RateGovernor {
	logger := observability.Component(c.Logger, "governor")
	return application.NewRateGovernor(application.GovernorConfig{
		Limit:  c.Config.RateLimitDeletes,
		Window: c.Config.RateLimitWindow,
		Margin: c.Config.RateLimitMargin,
		Buffer: c.Config.RateLimitBuffer,
	}, application.NewContextSleeper(0, logger), logger)
}

// Orchestrator wires the deletion loop to the client, ledger and publisher.
func (c *Container) Orchestrator(deleter application.Deleter, ledger application.Ledger, confirmer application.Confirmer) (*application.Orchestrator, error) {
	publisher, err := c.Publisher()
	if err != nil {
		return nil, err
	}
	return application.NewOrchestrator(deleter, ledger, c.Governor(), confirmer, observability.Component(c.Logger, "orchestrator")).
		WithPublisher(publisher).
		WithMetrics(c.Metrics), nil
}

// Close releases everything the container opened. The ledger is flushed
// before it is closed.
func (c *Container) Close() error {
	var errs []error
	if c.ledger != nil {
		if err := c.ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ledger: %w", err))
		}
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}
	return errors.Join(errs...)
}
