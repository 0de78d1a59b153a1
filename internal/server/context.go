package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/google"
	"github.com/teemow/attachfinder/internal/instrumentation"
	"github.com/teemow/attachfinder/internal/logging"
	"github.com/teemow/attachfinder/internal/search"
)

// Authenticator drives the Google consent flow for the single configured
// account. *google.Credentials satisfies it.
type Authenticator interface {
	HasToken() bool
	AuthURL() string
	Exchange(ctx context.Context, code string) error
	Logout() error
}

// Searcher runs attachment searches.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Page, error)
}

// Mailbox reads attachments of individual messages.
type Mailbox interface {
	ListAttachments(ctx context.Context, messageID string) ([]gmail.Attachment, error)
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// Session bundles the services bound to one OAuth token.
type Session struct {
	Search  Searcher
	Mailbox Mailbox
}

// SessionFactory builds a session. It is called lazily, once per token.
type SessionFactory func(ctx context.Context) (*Session, error)

// ServerContext holds the state shared by the REST API and the MCP tools.
type ServerContext struct {
	ctx        context.Context
	cancel     context.CancelFunc
	auth       Authenticator
	newSession SessionFactory
	logger     *slog.Logger
	metrics    *instrumentation.Metrics

	mu       sync.RWMutex
	session  *Session
	shutdown bool
}

// NewServerContext creates a new server context. The session is created on
// first use so the server can start before the user has authorized it.
func NewServerContext(ctx context.Context, auth Authenticator, newSession SessionFactory, logger *slog.Logger, metrics *instrumentation.Metrics) (*ServerContext, error) {
	if auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if newSession == nil {
		return nil, fmt.Errorf("session factory is required")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		auth:       auth,
		newSession: newSession,
		logger:     logging.OrDiscard(logger),
		metrics:    metrics,
	}, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// Authenticated reports whether an OAuth token is stored.
func (sc *ServerContext) Authenticated() bool {
	return sc.auth.HasToken()
}

// AuthURL returns the consent page URL.
func (sc *ServerContext) AuthURL() string {
	return sc.auth.AuthURL()
}

// Session returns the cached session, creating it if a token is stored.
// It returns an error wrapping google.ErrNoToken when none is.
func (sc *ServerContext) Session() (*Session, error) {
	sc.mu.RLock()
	session := sc.session
	sc.mu.RUnlock()
	if session != nil {
		return session, nil
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.session != nil {
		return sc.session, nil
	}
	if !sc.auth.HasToken() {
		return nil, google.ErrNoToken
	}

	session, err := sc.newSession(sc.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail session: %w", err)
	}
	sc.session = session
	return session, nil
}

// Exchange trades an authorization code for a token and drops the cached
// session so the next call uses the new token.
func (sc *ServerContext) Exchange(ctx context.Context, code string) error {
	if err := sc.auth.Exchange(ctx, code); err != nil {
		return err
	}
	sc.resetSession()
	sc.logger.Info("stored new Google OAuth token")
	return nil
}

// Logout removes the stored token.
func (sc *ServerContext) Logout() error {
	if err := sc.auth.Logout(); err != nil {
		return err
	}
	sc.resetSession()
	sc.logger.Info("removed Google OAuth token")
	return nil
}

func (sc *ServerContext) resetSession() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.session = nil
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
