package gmail_tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/search"
	"github.com/teemow/attachfinder/internal/server"
)

const testAuthURL = "https://accounts.example/auth?state=x"

var errBoom = errors.New("boom")

type fakeAuth struct {
	hasToken bool
}

func (f *fakeAuth) HasToken() bool                         { return f.hasToken }
func (f *fakeAuth) AuthURL() string                        { return testAuthURL }
func (f *fakeAuth) Exchange(context.Context, string) error { f.hasToken = true; return nil }
func (f *fakeAuth) Logout() error                          { f.hasToken = false; return nil }

type fakeSearcher struct {
	page *search.Page
	err  error
	reqs []search.Request
}

func (f *fakeSearcher) Search(_ context.Context, req search.Request) (*search.Page, error) {
	f.reqs = append(f.reqs, req)
	return f.page, f.err
}

type fakeMailbox struct {
	attachments map[string][]gmail.Attachment
	data        map[string][]byte
	err         error
}

func (f *fakeMailbox) ListAttachments(_ context.Context, messageID string) ([]gmail.Attachment, error) {
	if f.err != nil {
		return nil, f.err
	}
	atts, ok := f.attachments[messageID]
	if !ok {
		return nil, errors.New("message not found")
	}
	return atts, nil
}

func (f *fakeMailbox) GetAttachment(_ context.Context, messageID, attachmentID string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[messageID+"/"+attachmentID], nil
}

type fixture struct {
	auth     *fakeAuth
	searcher *fakeSearcher
	mailbox  *fakeMailbox
	sc       *server.ServerContext
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth:     &fakeAuth{hasToken: true},
		searcher: &fakeSearcher{page: &search.Page{Emails: []search.EmailSummary{}}},
		mailbox: &fakeMailbox{
			attachments: map[string][]gmail.Attachment{},
			data:        map[string][]byte{},
		},
	}
	sc, err := server.NewServerContext(context.Background(), f.auth, func(context.Context) (*server.Session, error) {
		return &server.Session{Search: f.searcher, Mailbox: f.mailbox}, nil
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	f.sc = sc
	return f
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func decodeJSON(t *testing.T, text string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(text), v), text)
}
