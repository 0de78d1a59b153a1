package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"

	igmail "github.com/teemow/attachfinder/internal/gmail"
)

type scanCall struct {
	query     string
	pageToken string
	pageSize  int
}

type fakeScanner struct {
	result igmail.ScanResult
	err    error
	calls  []scanCall
}

func (f *fakeScanner) Scan(_ context.Context, query, pageToken string, pageSize int) (igmail.ScanResult, error) {
	f.calls = append(f.calls, scanCall{query, pageToken, pageSize})
	return f.result, f.err
}

type fakeFetcher struct {
	result *igmail.FetchResult
	err    error
	called bool
}

func (f *fakeFetcher) FetchFull(_ context.Context, _ []string) (*igmail.FetchResult, error) {
	f.called = true
	return f.result, f.err
}

// fakeResolver answers from fixed tables keyed by message id.
type fakeResolver struct {
	attachments map[string][]igmail.Attachment
	errs        map[string]error

	mu    sync.Mutex
	calls []string
}

func (f *fakeResolver) ResolveAttachments(_ context.Context, msg *gmail.Message) ([]igmail.Attachment, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg.Id)
	f.mu.Unlock()
	if err := f.errs[msg.Id]; err != nil {
		return nil, err
	}
	return f.attachments[msg.Id], nil
}

func message(id, from, date string) *gmail.Message {
	var headers []*gmail.MessagePartHeader
	if from != "" {
		headers = append(headers, &gmail.MessagePartHeader{Name: "From", Value: from})
	}
	if date != "" {
		headers = append(headers, &gmail.MessagePartHeader{Name: "date", Value: date})
	}
	return &gmail.Message{
		Id:       id,
		ThreadId: "t-" + id,
		Snippet:  "snippet " + id,
		Payload:  &gmail.MessagePart{Headers: headers},
	}
}

func pdf(messageID, attachmentID, filename string) igmail.Attachment {
	return igmail.Attachment{MessageID: messageID, AttachmentID: attachmentID, Filename: filename, MimeType: "application/pdf"}
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "invoice AND has:attachment", BuildQuery("invoice"))
	assert.Equal(t, "from:a@x.com AND has:attachment", BuildQuery("  from:a@x.com "))
	assert.Equal(t, "has:attachment", BuildQuery(""))
}

func TestSearch_Invoice(t *testing.T) {
	scanner := &fakeScanner{result: igmail.ScanResult{IDs: []string{"m1", "m2"}, NextPageToken: "tok2", Calls: 1}}
	fetcher := &fakeFetcher{result: &igmail.FetchResult{Messages: []*gmail.Message{
		message("m1", "Jane Doe <jane@x.com>", "Tue, 1 Oct 2024 10:00:00 +0000"),
		message("m2", "Bob <bob@x.com>", ""),
	}}}
	resolver := &fakeResolver{attachments: map[string][]igmail.Attachment{
		"m1": {pdf("m1", "a1", "inv.pdf")},
	}}

	svc := NewService(scanner, fetcher, resolver, Options{})
	page, err := svc.Search(context.Background(), Request{Query: "invoice", PageSize: 2})
	require.NoError(t, err)

	require.Len(t, page.Emails, 1)
	require.NotNil(t, page.NextPageToken)
	assert.Equal(t, "tok2", *page.NextPageToken)
	assert.Equal(t, "tok2", page.Token())
	assert.Empty(t, page.Excluded)

	got := page.Emails[0]
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "t-m1", got.ThreadID)
	assert.Equal(t, "snippet m1", got.Snippet)
	assert.Equal(t, "Jane Doe", got.SenderName)
	assert.Equal(t, "jane@x.com", got.SenderEmail)
	require.NotNil(t, got.Date)
	assert.Equal(t, "2024-10-01T10:00:00.000Z", *got.Date)
	assert.Equal(t, []AttachmentRef{{MimeType: "application/pdf", Filename: "inv.pdf", AttachmentID: "a1"}}, got.Attachments)

	assert.Equal(t, []scanCall{{"invoice AND has:attachment", "", 2}}, scanner.calls)
	assert.ElementsMatch(t, []string{"m1", "m2"}, resolver.calls)
}

func TestSearch_FiltersMessagesWithoutAttachments(t *testing.T) {
	scanner := &fakeScanner{result: igmail.ScanResult{IDs: []string{"A", "B", "C"}}}
	fetcher := &fakeFetcher{result: &igmail.FetchResult{Messages: []*gmail.Message{
		message("A", "a@x.com", ""),
		message("B", "b@x.com", ""),
		message("C", "c@x.com", ""),
	}}}
	resolver := &fakeResolver{attachments: map[string][]igmail.Attachment{
		"A": {pdf("A", "a1", "a.pdf")},
		"C": {pdf("C", "c1", "c.pdf"), pdf("C", "c2", "c2.pdf")},
	}}

	page, err := NewService(scanner, fetcher, resolver, Options{}).Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	require.Len(t, page.Emails, 2)
	assert.Equal(t, "A", page.Emails[0].ID)
	assert.Equal(t, "C", page.Emails[1].ID)
	assert.Len(t, page.Emails[1].Attachments, 2)
	assert.Nil(t, page.NextPageToken)
	assert.Empty(t, page.Excluded, "a message without attachments is filtered, not excluded")
}

func TestSearch_NoMatches(t *testing.T) {
	scanner := &fakeScanner{result: igmail.ScanResult{NextPageToken: ""}}
	fetcher := &fakeFetcher{}

	page, err := NewService(scanner, fetcher, &fakeResolver{}, Options{}).Search(context.Background(), Request{Query: "nothing"})
	require.NoError(t, err)

	assert.NotNil(t, page.Emails)
	assert.Empty(t, page.Emails)
	assert.Nil(t, page.NextPageToken)
	assert.False(t, fetcher.called, "no fetch for an empty id list")
}

func TestSearch_DefaultPageSize(t *testing.T) {
	scanner := &fakeScanner{}
	_, err := NewService(scanner, &fakeFetcher{}, &fakeResolver{}, Options{}).Search(context.Background(), Request{Query: "q", PageToken: "p1"})
	require.NoError(t, err)

	assert.Equal(t, []scanCall{{"q AND has:attachment", "p1", igmail.DefaultPageSize}}, scanner.calls)
}

func TestSearch_Exclusions(t *testing.T) {
	scanner := &fakeScanner{result: igmail.ScanResult{IDs: []string{"ok", "bad", "gone", "x"}}}
	fetcher := &fakeFetcher{result: &igmail.FetchResult{
		Messages: []*gmail.Message{
			message("ok", "", ""),
			nil,
			{Snippet: "no id"},
			message("bad", "", ""),
		},
		Skipped: []igmail.SkippedMessage{{ID: "gone", Reason: "status 404"}},
	}}
	resolver := &fakeResolver{
		attachments: map[string][]igmail.Attachment{"ok": {pdf("ok", "a", "a.pdf")}},
		errs:        map[string]error{"bad": errors.New("googleapi: Error 500")},
	}

	page, err := NewService(scanner, fetcher, resolver, Options{}).Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err, "per-message failures never fail the page")

	require.Len(t, page.Emails, 1)
	assert.Equal(t, "ok", page.Emails[0].ID)
	assert.Nil(t, page.Emails[0].Date, "missing Date header yields null")
	assert.Equal(t, []Exclusion{
		{MessageID: "gone", Stage: StageFetch, Reason: "status 404"},
		{MessageID: "", Stage: StageInvalid, Reason: "message has no id"},
		{MessageID: "", Stage: StageInvalid, Reason: "message has no id"},
		{MessageID: "bad", Stage: StageResolve, Reason: "googleapi: Error 500"},
	}, page.Excluded)
}

func TestSearch_ScanErrorFailsPage(t *testing.T) {
	boom := errors.New("invalid credentials")
	svc := NewService(&fakeScanner{err: boom}, &fakeFetcher{}, &fakeResolver{}, Options{})

	page, err := svc.Search(context.Background(), Request{Query: "q"})
	assert.Nil(t, page)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "failed to scan message ids")
}

func TestSearch_FetchErrorFailsPage(t *testing.T) {
	batchErr := &igmail.BatchError{StatusCode: 401, Body: "Login Required"}
	scanner := &fakeScanner{result: igmail.ScanResult{IDs: []string{"m1"}}}
	svc := NewService(scanner, &fakeFetcher{err: batchErr}, &fakeResolver{}, Options{})

	_, err := svc.Search(context.Background(), Request{Query: "q"})

	var target *igmail.BatchError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, 401, target.StatusCode)
}

func TestSearch_ExhaustedScan(t *testing.T) {
	scanner := &fakeScanner{result: igmail.ScanResult{IDs: []string{"m1"}, Exhausted: true, Calls: 11}}
	fetcher := &fakeFetcher{result: &igmail.FetchResult{Messages: []*gmail.Message{message("m1", "", "")}}}
	resolver := &fakeResolver{attachments: map[string][]igmail.Attachment{"m1": {pdf("m1", "a", "a.pdf")}}}

	page, err := NewService(scanner, fetcher, resolver, Options{}).Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	assert.True(t, page.Exhausted)
	assert.Nil(t, page.NextPageToken)
	assert.Len(t, page.Emails, 1)
}

func TestPage_TokenNil(t *testing.T) {
	var p *Page
	assert.Equal(t, "", p.Token())
	assert.Equal(t, "", (&Page{}).Token())
}
