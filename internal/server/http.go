package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/attachfinder/internal/logging"
)

// MCPEndpoint is the path of the streamable HTTP MCP endpoint.
const MCPEndpoint = "/mcp"

// HTTPServerConfig configures the API listener.
type HTTPServerConfig struct {
	Addr        string
	CORSOrigins []string
	Version     string

	// MCPServer is mounted at MCPEndpoint when set.
	MCPServer *mcpserver.MCPServer
}

// HTTPServer serves the REST API, the health endpoints and optionally MCP
// over streamable HTTP on one listener.
type HTTPServer struct {
	httpServer *http.Server
	health     *HealthChecker
	addr       string
	logger     *slog.Logger
}

// NewHTTPServer creates the server. Nothing listens until Start or Serve.
func NewHTTPServer(sc *ServerContext, cfg HTTPServerConfig) *HTTPServer {
	logger := logging.WithOperation(sc.Logger(), "http")
	health := NewHealthChecker(sc, cfg.Version)

	mux := http.NewServeMux()
	health.RegisterHealthEndpoints(mux)
	NewAPI(sc).Register(mux)

	if cfg.MCPServer != nil {
		mux.Handle(MCPEndpoint, mcpserver.NewStreamableHTTPServer(cfg.MCPServer,
			mcpserver.WithEndpointPath(MCPEndpoint),
		))
	}

	var handler http.Handler = mux
	handler = CORS(splitOrigins(cfg.CORSOrigins), handler)
	handler = RequestLogger(logger, sc.Metrics(), handler)

	return &HTTPServer{
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      2 * time.Minute,
			IdleTimeout:       120 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return sc.Context() },
		},
		health: health,
		addr:   cfg.Addr,
		logger: logger,
	}
}

// Handler returns the fully wrapped root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Health returns the health checker backing /healthz and /readyz.
func (s *HTTPServer) Health() *HealthChecker {
	return s.health
}

// Start listens on the configured address and serves until Shutdown.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *HTTPServer) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", slog.String("addr", ln.Addr().String()))
	return s.httpServer.Serve(ln)
}

// Shutdown marks the server unready and drains open connections.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
