// Package config loads tweetsweep settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is returned by Validate when no way to authenticate
// is configured.
var ErrMissingCredentials = errors.New("missing credentials")

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string
	LogSource bool

	// X API
	APIBaseURL   string
	AccessToken  string
	RefreshToken string

	// OAuth
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       string

	// Token storage
	EncryptionKey string
	TokenFile     string

	// Storage
	LedgerURL string
	CacheURL  string
	CacheTTL  time.Duration

	// RabbitMQ
	RabbitMQURL string

	// Rate limiting
	RateLimitDeletes int
	RateLimitWindow  time.Duration
	RateLimitMargin  int
	RateLimitBuffer  time.Duration

	// Fetch and preview
	FetchPageSize int
	PreviewLimit  int

	// HTTP transport
	HTTPTimeout             time.Duration
	BreakerFailureThreshold int
	BreakerTimeout          time.Duration
}

// fileConfig is the YAML layout. Every value is a default that the
// environment can override. Tokens are never read from the file.
type fileConfig struct {
	AppEnv string `yaml:"app_env"`
	Log    struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	API struct {
		BaseURL     string   `yaml:"base_url"`
		ClientID    string   `yaml:"client_id"`
		AuthURL     string   `yaml:"auth_url"`
		TokenURL    string   `yaml:"token_url"`
		RedirectURL string   `yaml:"redirect_url"`
		Scopes      []string `yaml:"scopes"`
		Timeout     string   `yaml:"timeout"`
	} `yaml:"api"`
	Storage struct {
		Ledger    string `yaml:"ledger"`
		Cache     string `yaml:"cache"`
		CacheTTL  string `yaml:"cache_ttl"`
		TokenFile string `yaml:"token_file"`
	} `yaml:"storage"`
	RabbitMQURL string `yaml:"rabbitmq_url"`
	RateLimit   struct {
		Deletes int    `yaml:"deletes"`
		Window  string `yaml:"window"`
		Margin  *int   `yaml:"margin"`
		Buffer  string `yaml:"buffer"`
	} `yaml:"rate_limit"`
	Breaker struct {
		FailureThreshold int    `yaml:"failure_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"breaker"`
	FetchPageSize int `yaml:"fetch_page_size"`
	PreviewLimit  int `yaml:"preview_limit"`
}

// Load reads configuration. A .env file in the working directory is loaded
// first if present; path names an optional YAML file whose values sit below
// the environment in precedence.
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var file fileConfig
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - operator supplied config path
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	margin := 2
	if file.RateLimit.Margin != nil {
		margin = *file.RateLimit.Margin
	}

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", or(file.AppEnv, "development")),
		LogLevel:  getEnv("LOG_LEVEL", or(file.Log.Level, "info")),
		LogFormat: getEnv("LOG_FORMAT", or(file.Log.Format, "text")),
		LogSource: getBoolEnv("LOG_ADD_SOURCE", false),

		APIBaseURL:   getEnv("X_API_BASE_URL", or(file.API.BaseURL, "https://api.x.com")),
		AccessToken:  getEnv("X_ACCESS_TOKEN", ""),
		RefreshToken: getEnv("X_REFRESH_TOKEN", ""),

		ClientID:     getEnv("X_CLIENT_ID", file.API.ClientID),
		ClientSecret: getEnv("X_CLIENT_SECRET", ""),
		AuthURL:      getEnv("X_AUTH_URL", file.API.AuthURL),
		TokenURL:     getEnv("X_TOKEN_URL", file.API.TokenURL),
		RedirectURL:  getEnv("X_REDIRECT_URL", file.API.RedirectURL),
		Scopes:       getEnv("X_SCOPES", strings.Join(file.API.Scopes, " ")),

		EncryptionKey: getEnv("TWEETSWEEP_ENCRYPTION_KEY", ""),
		TokenFile:     getEnv("TWEETSWEEP_TOKEN_FILE", file.Storage.TokenFile),

		LedgerURL: getEnv("LEDGER_URL", or(file.Storage.Ledger, "deleted_tweets_log.json")),
		CacheURL:  getEnv("CACHE_URL", or(file.Storage.Cache, "fetched_tweets.json")),
		CacheTTL:  getDurationEnv("CACHE_TTL", parseDuration(file.Storage.CacheTTL, 7*24*time.Hour)),

		RabbitMQURL: getEnv("RABBITMQ_URL", file.RabbitMQURL),

		RateLimitDeletes: getIntEnv("RATE_LIMIT_DELETES", orInt(file.RateLimit.Deletes, 50)),
		RateLimitWindow:  getDurationEnv("RATE_LIMIT_WINDOW", parseDuration(file.RateLimit.Window, 15*time.Minute)),
		RateLimitMargin:  getIntEnv("RATE_LIMIT_MARGIN", margin),
		RateLimitBuffer:  getDurationEnv("RATE_LIMIT_BUFFER", parseDuration(file.RateLimit.Buffer, 5*time.Second)),

		FetchPageSize: getIntEnv("FETCH_PAGE_SIZE", orInt(file.FetchPageSize, 100)),
		PreviewLimit:  getIntEnv("PREVIEW_LIMIT", orInt(file.PreviewLimit, 20)),

		HTTPTimeout:             getDurationEnv("HTTP_TIMEOUT", parseDuration(file.API.Timeout, 30*time.Second)),
		BreakerFailureThreshold: getIntEnv("BREAKER_FAILURE_THRESHOLD", orInt(file.Breaker.FailureThreshold, 5)),
		BreakerTimeout:          getDurationEnv("BREAKER_TIMEOUT", parseDuration(file.Breaker.Timeout, 60*time.Second)),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// HasEnvToken reports whether tokens are supplied through the environment.
func (c *Config) HasEnvToken() bool {
	return c.AccessToken != "" || (c.RefreshToken != "" && c.ClientID != "")
}

// MissingCredentials lists the variables still needed to authenticate,
// given whether a token file from 'auth login' exists.
func (c *Config) MissingCredentials(hasStoredToken bool) []string {
	if c.HasEnvToken() {
		return nil
	}
	if hasStoredToken {
		if c.EncryptionKey == "" {
			return []string{"TWEETSWEEP_ENCRYPTION_KEY"}
		}
		return nil
	}

	missing := []string{"X_ACCESS_TOKEN"}
	if c.RefreshToken != "" && c.ClientID == "" {
		missing = append(missing, "X_CLIENT_ID")
	}
	return missing
}

// Validate checks the settings a deletion run depends on.
func (c *Config) Validate(hasStoredToken bool) error {
	if missing := c.MissingCredentials(hasStoredToken); len(missing) > 0 {
		return fmt.Errorf("%w: %s (or run 'tweetsweep auth login')", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	if c.RateLimitDeletes <= 0 {
		return fmt.Errorf("RATE_LIMIT_DELETES must be positive, got %d", c.RateLimitDeletes)
	}
	if c.RateLimitMargin < 0 || c.RateLimitMargin >= c.RateLimitDeletes {
		return fmt.Errorf("RATE_LIMIT_MARGIN must be between 0 and %d, got %d", c.RateLimitDeletes-1, c.RateLimitMargin)
	}
	if c.FetchPageSize < 1 || c.FetchPageSize > 100 {
		return fmt.Errorf("FETCH_PAGE_SIZE must be between 1 and 100, got %d", c.FetchPageSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func or(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func orInt(value, defaultValue int) int {
	if value != 0 {
		return value
	}
	return defaultValue
}
