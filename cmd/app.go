package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/attachfinder/internal/config"
	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/google"
	"github.com/teemow/attachfinder/internal/instrumentation"
	"github.com/teemow/attachfinder/internal/logging"
	"github.com/teemow/attachfinder/internal/server"
)

// app holds what every command derives from the configuration.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

// newApp loads and validates the configuration for cmd. Flags of cmd that
// map to config keys override the file and environment.
func newApp(cmd *cobra.Command) (*app, error) {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, err
	}
	debug, err := cmd.Flags().GetBool(flagDebug)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &app{cfg: cfg, logger: logging.New(os.Stderr, debug)}, nil
}

// tokenStore opens the configured token backend.
func (a *app) tokenStore() (google.TokenStore, error) {
	switch a.cfg.Token.Store {
	case config.TokenStoreKeyring:
		return google.OpenKeyringTokenStore(a.cfg.Token.KeyringDir, a.cfg.Token.KeyringPassword)
	default:
		return google.NewFileTokenStore(a.cfg.Token.Path), nil
	}
}

// credentials builds the OAuth credentials over the configured token store.
func (a *app) credentials() (*google.Credentials, error) {
	store, err := a.tokenStore()
	if err != nil {
		return nil, err
	}
	return google.NewCredentials(a.cfg.Google.OAuth(), store, a.logger), nil
}

// sessionOptions maps the search settings onto the Gmail session.
func (a *app) sessionOptions(metrics *instrumentation.Metrics) server.GmailSessionOptions {
	return server.GmailSessionOptions{
		Client: gmail.Options{
			APIEndpoint:   a.cfg.Search.APIEndpoint,
			BatchEndpoint: a.cfg.Search.BatchEndpoint,
			BatchLimit:    a.cfg.Search.BatchLimit,
			RateLimit:     a.cfg.Search.RateLimit,
		},
		MaxDepth:    a.cfg.Search.MaxDepth,
		FromPayload: a.cfg.Search.FromPayload,
		Logger:      a.logger,
		Metrics:     metrics,
	}
}

// addSearchFlags registers the flags shared by commands that talk to Gmail.
func addSearchFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	cmd.Flags().String("token-store", defaults.Token.Store, "Token store: file or keyring")
	cmd.Flags().String("token-path", defaults.Token.Path, "Token file for the file token store")
	cmd.Flags().Int("max-depth", defaults.Search.MaxDepth, "Continuation pages one scan may follow")
	cmd.Flags().Int("batch-limit", defaults.Search.BatchLimit, "Sub-requests per batch call")
	cmd.Flags().String("batch-endpoint", defaults.Search.BatchEndpoint, "Gmail batch endpoint")
	cmd.Flags().Float64("rate-limit", defaults.Search.RateLimit, "Per-message Gmail calls per second (0 disables)")
	cmd.Flags().Bool("from-payload", defaults.Search.FromPayload, "Read attachments from the batch payload instead of one call per message")
}
