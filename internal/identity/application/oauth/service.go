// Package oauth runs the OAuth 2.0 authorization code flow with PKCE against
// X and keeps the resulting token encrypted at rest.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	sharedCrypto "github.com/felixgeelhaar/tweetsweep/internal/shared/infrastructure/crypto"
)

// Provider is recorded with every stored token.
const Provider = "x"

// Endpoints and scopes used when the configuration leaves them empty.
const (
	DefaultAuthURL     = "https://x.com/i/oauth2/authorize"
	DefaultTokenURL    = "https://api.x.com/2/oauth2/token"
	DefaultRedirectURL = "http://127.0.0.1:8765/callback"
)

// DefaultScopes allow reading the timeline and deleting tweets. offline.access
// yields a refresh token.
var DefaultScopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access"}

var (
	// ErrTokenNotFound is returned when no token has been stored yet.
	ErrTokenNotFound = errors.New("no stored token, run 'tweetsweep auth login'")
	// ErrIncompleteConfig is returned when the client id is missing.
	ErrIncompleteConfig = errors.New("oauth configuration is incomplete")
	// ErrStateMismatch is returned when the callback state differs from the request.
	ErrStateMismatch = errors.New("oauth state mismatch")
)

// TokenRepository persists the encrypted token.
type TokenRepository interface {
	Save(ctx context.Context, token StoredToken) error
	// Load returns ErrTokenNotFound when nothing is stored.
	Load(ctx context.Context) (*StoredToken, error)
}

// StoredToken is the encrypted representation of an OAuth token.
type StoredToken struct {
	Provider     string    `json:"provider"`
	AccessToken  []byte    `json:"access_token"`
	RefreshToken []byte    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes"`
	SavedAt      time.Time `json:"saved_at"`
}

// Config describes the registered X app.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
}

// OAuth2Config fills defaults and returns the library configuration.
func (c Config) OAuth2Config() *oauth2.Config {
	authURL := c.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	redirectURL := c.RedirectURL
	if redirectURL == "" {
		redirectURL = DefaultRedirectURL
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}
}

// AuthRequest is one pending authorization. Verifier must be kept until
// the code is exchanged.
type AuthRequest struct {
	URL      string
	State    string
	Verifier string
}

// Service manages the login flow and token storage.
type Service struct {
	oauthConfig *oauth2.Config
	repo        TokenRepository
	encrypter   sharedCrypto.Encrypter
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a new OAuth service.
func NewService(cfg Config, repo TokenRepository, encrypter sharedCrypto.Encrypter, logger *slog.Logger) (*Service, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: X_CLIENT_ID is required", ErrIncompleteConfig)
	}
	if repo == nil || encrypter == nil {
		return nil, errors.New("oauth dependencies are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		oauthConfig: cfg.OAuth2Config(),
		repo:        repo,
		encrypter:   encrypter,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// StartAuth creates a PKCE protected authorization request.
func (s *Service) StartAuth() AuthRequest {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	return AuthRequest{
		URL:      s.oauthConfig.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		State:    state,
		Verifier: verifier,
	}
}

// ExchangeAndStore exchanges a code for a token and stores it encrypted.
func (s *Service) ExchangeAndStore(ctx context.Context, req AuthRequest, code string) (*oauth2.Token, error) {
	token, err := s.oauthConfig.Exchange(ctx, code, oauth2.VerifierOption(req.Verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if err := s.store(ctx, token); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "oauth token stored", "expiry", token.Expiry)
	return token, nil
}

func (s *Service) store(ctx context.Context, token *oauth2.Token) error {
	accessEnc, err := s.encrypter.Encrypt([]byte(token.AccessToken))
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}

	var refreshEnc []byte
	if token.RefreshToken != "" {
		refreshEnc, err = s.encrypter.Encrypt([]byte(token.RefreshToken))
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	stored := StoredToken{
		Provider:     Provider,
		AccessToken:  accessEnc,
		RefreshToken: refreshEnc,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
		Scopes:       s.oauthConfig.Scopes,
		SavedAt:      s.now().UTC(),
	}
	if err := s.repo.Save(ctx, stored); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *Service) loadToken(ctx context.Context) (*oauth2.Token, *StoredToken, error) {
	stored, err := s.repo.Load(ctx)
	if err != nil {
		return nil, nil, err
	}

	access, err := s.encrypter.Decrypt(stored.AccessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt access token: %w", err)
	}

	refresh := ""
	if len(stored.RefreshToken) > 0 {
		refreshBytes, err := s.encrypter.Decrypt(stored.RefreshToken)
		if err != nil {
			return nil, nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
		refresh = string(refreshBytes)
	}

	return &oauth2.Token{
		AccessToken:  string(access),
		RefreshToken: refresh,
		TokenType:    stored.TokenType,
		Expiry:       stored.Expiry,
	}, stored, nil
}

// TokenSource returns a refreshing token source for the stored token.
// Refreshed tokens are written back so the next run starts from them.
func (s *Service) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	token, _, err := s.loadToken(ctx)
	if err != nil {
		return nil, err
	}
	return &persistingTokenSource{
		base:    oauth2.ReuseTokenSource(token, s.oauthConfig.TokenSource(ctx, token)),
		last:    token.AccessToken,
		service: s,
		ctx:     context.WithoutCancel(ctx),
	}, nil
}

// TokenStatus describes the stored token without exposing it.
type TokenStatus struct {
	Expiry     time.Time
	Expired    bool
	CanRefresh bool
	Scopes     []string
	SavedAt    time.Time
}

// Status reports on the stored token.
func (s *Service) Status(ctx context.Context) (*TokenStatus, error) {
	token, stored, err := s.loadToken(ctx)
	if err != nil {
		return nil, err
	}
	return &TokenStatus{
		Expiry:     token.Expiry,
		Expired:    !token.Expiry.IsZero() && token.Expiry.Before(s.now()),
		CanRefresh: token.RefreshToken != "",
		Scopes:     stored.Scopes,
		SavedAt:    stored.SavedAt,
	}, nil
}

type persistingTokenSource struct {
	base    oauth2.TokenSource
	last    string
	service *Service
	ctx     context.Context
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != p.last {
		p.last = token.AccessToken
		if err := p.service.store(p.ctx, token); err != nil {
			p.service.logger.Warn("refreshed token not saved", "error", err)
		}
	}
	return token, nil
}

// EnvTokenSource builds a token source from tokens supplied directly in the
// environment. A refresh token with a client id is exchanged for a new access
// token whenever the access token is empty.
func EnvTokenSource(ctx context.Context, cfg Config, accessToken, refreshToken string) oauth2.TokenSource {
	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	if refreshToken == "" || cfg.ClientID == "" {
		return oauth2.StaticTokenSource(token)
	}
	token.RefreshToken = refreshToken
	return cfg.OAuth2Config().TokenSource(ctx, token)
}

// ParseCallback extracts the authorization code from what the user pasted:
// either the full redirect URL or the bare code.
func ParseCallback(input, expectedState string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("authorization code is empty")
	}
	if !strings.Contains(input, "://") && !strings.HasPrefix(input, "?") {
		return input, nil
	}

	raw := input
	if i := strings.Index(raw, "?"); i >= 0 {
		raw = raw[i+1:]
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("parse callback: %w", err)
	}
	if e := values.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}
	if state := values.Get("state"); expectedState != "" && state != expectedState {
		return "", ErrStateMismatch
	}
	code := values.Get("code")
	if code == "" {
		return "", errors.New("callback has no code parameter")
	}
	return code, nil
}

// ScopesFromEnv parses a comma or space separated list of scopes.
func ScopesFromEnv(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
