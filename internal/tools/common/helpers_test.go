package common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teemow/attachfinder/internal/instrumentation"
	"github.com/teemow/attachfinder/internal/server"
)

const testAuthURL = "https://accounts.example/auth?state=x"

type fakeAuth struct {
	hasToken bool
}

func (f *fakeAuth) HasToken() bool                         { return f.hasToken }
func (f *fakeAuth) AuthURL() string                        { return testAuthURL }
func (f *fakeAuth) Exchange(context.Context, string) error { f.hasToken = true; return nil }
func (f *fakeAuth) Logout() error                          { f.hasToken = false; return nil }

func newServerContext(t *testing.T, hasToken bool, metrics *instrumentation.Metrics) *server.ServerContext {
	t.Helper()
	sc, err := server.NewServerContext(context.Background(), &fakeAuth{hasToken: hasToken}, func(context.Context) (*server.Session, error) {
		return &server.Session{}, nil
	}, nil, metrics)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}
