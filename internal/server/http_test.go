package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPServer_Routes(t *testing.T) {
	provider := createTestProvider(t)
	f := newFixture(t)
	sc, err := NewServerContext(context.Background(), f.auth, func(context.Context) (*Session, error) {
		return &Session{Search: f.searcher, Mailbox: f.mailbox}, nil
	}, nil, provider.Metrics())
	require.NoError(t, err)

	srv := NewHTTPServer(sc, HTTPServerConfig{Addr: ":0", CORSOrigins: []string{"http://localhost:5173"}, Version: "test"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/search?q=invoice", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	families, err := provider.Gatherer().Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "http_requests_total") {
			found = true
		}
	}
	assert.True(t, found, "requests are counted")
}

func TestHTTPServer_ShutdownMarksUnready(t *testing.T) {
	f := newFixture(t)
	srv := NewHTTPServer(f.sc, HTTPServerConfig{Addr: ":0"})

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.False(t, srv.Health().IsReady())
}

func TestHTTPServer_MountsMCP(t *testing.T) {
	f := newFixture(t)
	mcp := mcpserver.NewMCPServer("test", "1.0.0", mcpserver.WithToolCapabilities(true))
	srv := NewHTTPServer(f.sc, HTTPServerConfig{MCPServer: mcp})

	req := httptest.NewRequest(http.MethodPost, MCPEndpoint, strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"t","version":"1"}}}`,
	))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"serverInfo"`)
}
