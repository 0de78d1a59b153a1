package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/teemow/attachfinder/internal/instrumentation"
	"github.com/teemow/attachfinder/internal/logging"
)

// CredentialProvider supplies authentication for Gmail calls.
type CredentialProvider interface {
	// AccessToken returns a valid bearer token, refreshing it if needed.
	AccessToken(ctx context.Context) (string, error)

	// HTTPClient returns a client that authenticates every request.
	HTTPClient(ctx context.Context) (*http.Client, error)
}

// Credentials implements CredentialProvider on top of a TokenStore and
// also drives the consent flow (auth URL, code exchange, logout).
type Credentials struct {
	conf    *oauth2.Config
	store   TokenStore
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewCredentials returns credentials for the given OAuth client and token store.
func NewCredentials(oauthCfg OAuthConfig, store TokenStore, logger *slog.Logger) *Credentials {
	return &Credentials{
		conf:   oauthCfg.Config(),
		store:  store,
		logger: logging.WithService(logging.OrDiscard(logger), "google.oauth"),
	}
}

// SetMetrics sets the metrics recorder used for token exchange and refresh.
func (c *Credentials) SetMetrics(m *instrumentation.Metrics) {
	c.metrics = m
}

// HasToken reports whether a token is stored.
func (c *Credentials) HasToken() bool {
	_, err := c.store.Load()
	return err == nil
}

// AuthURL returns the consent page URL. The state is a fresh random value.
func (c *Credentials) AuthURL() string {
	return c.conf.AuthCodeURL(uuid.NewString(), oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (c *Credentials) Exchange(ctx context.Context, code string) error {
	if code == "" {
		return fmt.Errorf("authorization code is required")
	}

	start := time.Now()
	token, err := c.conf.Exchange(ctx, code)
	c.record(ctx, instrumentation.OperationExchange, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}

	if err := c.store.Save(token); err != nil {
		return err
	}

	c.mu.Lock()
	c.source = nil
	c.mu.Unlock()

	c.logger.Info("stored Google OAuth token", slog.String("access_token", logging.SanitizeToken(token.AccessToken)))
	return nil
}

// Logout removes the stored token.
func (c *Credentials) Logout() error {
	c.mu.Lock()
	c.source = nil
	c.mu.Unlock()

	if err := c.store.Remove(); err != nil {
		return err
	}
	c.logger.Info("removed Google OAuth token")
	return nil
}

// AccessToken returns a valid access token.
func (c *Credentials) AccessToken(ctx context.Context) (string, error) {
	ts, err := c.tokenSource(ctx)
	if err != nil {
		return "", err
	}
	token, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("cached token is invalid: %w", err)
	}
	return token.AccessToken, nil
}

// HTTPClient returns an HTTP client configured with OAuth2 authentication.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func (c *Credentials) HTTPClient(ctx context.Context) (*http.Client, error) {
	ts, err := c.tokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   HTTP1Transport(),
		},
	}, nil
}

// HTTP1Transport returns a transport with HTTP/2 disabled.
func HTTP1Transport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

func (c *Credentials) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.source != nil {
		return c.source, nil
	}

	token, err := c.store.Load()
	if err != nil {
		return nil, err
	}

	// Refreshes outlive the request that triggered them.
	base := c.conf.TokenSource(context.WithoutCancel(ctx), token)
	c.source = &persistingSource{
		base:  oauth2.ReuseTokenSource(token, base),
		last:  token.AccessToken,
		owner: c,
	}
	return c.source, nil
}

func (c *Credentials) record(ctx context.Context, op string, err error, d time.Duration) {
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceOAuth, op, status, d)
}

// persistingSource writes refreshed tokens back to the store.
type persistingSource struct {
	base  oauth2.TokenSource
	owner *Credentials

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			s.owner.logger.Warn("token refresh rejected", logging.Err(err))
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if err := s.owner.store.Save(token); err != nil {
			s.owner.logger.Warn("failed to persist refreshed token", logging.Err(err))
		}
	}
	return token, nil
}
