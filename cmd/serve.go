package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/attachfinder/internal/config"
	"github.com/teemow/attachfinder/internal/instrumentation"
	"github.com/teemow/attachfinder/internal/logging"
	"github.com/teemow/attachfinder/internal/resources"
	"github.com/teemow/attachfinder/internal/server"
	"github.com/teemow/attachfinder/internal/tools/gmail_tools"
	"github.com/teemow/attachfinder/internal/tools/google_tools"
)

// Transports.
const (
	transportHTTP  = "http"
	transportStdio = "stdio"
)

func newServeCmd() *cobra.Command {
	var (
		transport      string
		metricsEnabled bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the attachment search server",
		Long: `Start the attachment search server.

Supports two transport types:
  - http: REST API under /api, MCP over streamable HTTP at /mcp, and health
    endpoints, all on one listener (default)
  - stdio: MCP over standard input/output

OAuth Configuration:
  The Google OAuth client is read from ATTACHFINDER_GOOGLE_CLIENT_ID and
  ATTACHFINDER_GOOGLE_CLIENT_SECRET (or GOOGLE_CLIENT_ID/CLIENT_ID and
  GOOGLE_CLIENT_SECRET/CLIENT_SECRET), a .env file, or the config file.
  The server starts without a token; search calls answer 401 with the
  consent URL until one is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, transport, metricsEnabled)
		},
	}

	defaults := config.DefaultConfig()
	cmd.Flags().StringVar(&transport, "transport", transportHTTP, "Transport type: http or stdio")
	cmd.Flags().String("host", defaults.Server.Host, "HTTP listen host")
	cmd.Flags().Int("port", defaults.Server.Port, "HTTP listen port. Can also use PORT env var.")
	cmd.Flags().StringSlice("cors-origins", defaults.Server.CORSOrigins, "Allowed CORS origins (comma-separated, * for any)")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port")
	cmd.Flags().String("metrics-addr", defaults.Server.MetricsAddr, "Metrics server address")
	addSearchFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, transport string, metricsEnabled bool) error {
	if transport != transportHTTP && transport != transportStdio {
		return fmt.Errorf("unsupported transport type: %s (supported: http, stdio)", transport)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()
	metrics := provider.Metrics()

	creds, err := a.credentials()
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	creds.SetMetrics(metrics)
	if err := a.cfg.Google.OAuth().Validate(); err != nil {
		a.logger.Warn("OAuth client not configured, code exchange and token refresh will fail", logging.Err(err))
	}

	serverContext, err := server.NewServerContext(ctx, creds,
		server.NewGmailSessionFactory(creds, a.sessionOptions(metrics)),
		a.logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return err
	}

	if transport == transportStdio {
		return runStdioServer(mcpSrv)
	}
	return runHTTPServer(ctx, a, serverContext, mcpSrv, provider, metricsEnabled)
}

// newMCPServer creates the MCP server with every tool and resource registered.
func newMCPServer(sc *server.ServerContext) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("attachfinder", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	if err := registerAllTools(mcpSrv, sc); err != nil {
		return nil, err
	}
	return mcpSrv, nil
}

func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Gmail",
			register: func() error {
				return gmail_tools.RegisterGmailTools(mcpSrv, sc)
			},
		},
		{
			name: "Google OAuth",
			register: func() error {
				return google_tools.RegisterGoogleTools(mcpSrv, sc)
			},
		},
		{
			name: "Resources",
			register: func() error {
				return resources.RegisterResources(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServer(ctx context.Context, a *app, sc *server.ServerContext, mcpSrv *mcpserver.MCPServer, provider *instrumentation.Provider, metricsEnabled bool) error {
	errCh := make(chan error, 2)

	var metricsServer *server.MetricsServer
	if metricsEnabled && provider.Enabled() && provider.Gatherer() != nil && a.cfg.Server.MetricsAddr != "" {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    a.cfg.Server.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  a.logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
	}

	httpServer := server.NewHTTPServer(sc, server.HTTPServerConfig{
		Addr:        a.cfg.Server.ListenAddr(),
		CORSOrigins: a.cfg.Server.CORSOrigins,
		Version:     version,
		MCPServer:   mcpSrv,
	})
	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	a.logger.Info("attachfinder listening",
		slog.String("addr", a.cfg.Server.ListenAddr()),
		slog.String("mcp", server.MCPEndpoint),
		slog.Bool("authenticated", sc.Authenticated()),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", logging.Err(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown failed", logging.Err(err))
		}
	}

	return runErr
}
