package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/search"
)

type fakeAuth struct {
	mu        sync.Mutex
	hasToken  bool
	codes     []string
	exchanged error
	loggedOut int
}

func (f *fakeAuth) HasToken() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasToken
}

func (f *fakeAuth) AuthURL() string { return "https://accounts.example/auth?state=x" }

func (f *fakeAuth) Exchange(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	if f.exchanged != nil {
		return f.exchanged
	}
	f.hasToken = true
	return nil
}

func (f *fakeAuth) Logout() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut++
	f.hasToken = false
	return nil
}

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
	data        map[string][]byte
	err         error
	attachments []gmail.Attachment
}

func (f *fakeMailbox) ListAttachments(context.Context, string) ([]gmail.Attachment, error) {
	return f.attachments, f.err
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
	sc       *ServerContext
	sessions int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth:     &fakeAuth{hasToken: true},
		searcher: &fakeSearcher{page: &search.Page{Emails: []search.EmailSummary{}}},
		mailbox:  &fakeMailbox{data: map[string][]byte{}},
	}
	sc, err := NewServerContext(context.Background(), f.auth, func(context.Context) (*Session, error) {
		f.sessions++
		return &Session{Search: f.searcher, Mailbox: f.mailbox}, nil
	}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	f.sc = sc
	return f
}

var errBoom = errors.New("boom")
