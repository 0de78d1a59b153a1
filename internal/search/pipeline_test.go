package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"

	igmail "github.com/teemow/attachfinder/internal/gmail"
)

type testCredentials struct {
	client *http.Client
}

func (c testCredentials) AccessToken(context.Context) (string, error) { return "tok", nil }

func (c testCredentials) HTTPClient(context.Context) (*http.Client, error) { return c.client, nil }

// mailbox serves the list, batch and message endpoints from fixed messages.
type mailbox struct {
	t        *testing.T
	messages map[string]*gmail.Message
	list     func(q, pageToken string) (ids []string, next string)
}

func (m *mailbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/gmail/v1/users/me/messages":
		ids, next := m.list(r.URL.Query().Get("q"), r.URL.Query().Get("pageToken"))
		resp := gmail.ListMessagesResponse{NextPageToken: next}
		for _, id := range ids {
			resp.Messages = append(resp.Messages, &gmail.Message{Id: id})
		}
		m.writeJSON(w, &resp)

	case r.URL.Path == "/batch/gmail/v1":
		m.serveBatch(w, r)

	case strings.HasPrefix(r.URL.Path, "/gmail/v1/users/me/messages/"):
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/")
		msg, ok := m.messages[id]
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
			return
		}
		m.writeJSON(w, msg)

	default:
		http.NotFound(w, r)
	}
}

func (m *mailbox) serveBatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	require.NoError(m.t, err)

	var sb strings.Builder
	for _, line := range strings.Split(string(body), "\r\n") {
		id, ok := strings.CutPrefix(line, "Content-ID: <msg-")
		if !ok {
			continue
		}
		id = strings.TrimSuffix(id, ">")
		payload, err := json.Marshal(m.messages[id])
		require.NoError(m.t, err)
		fmt.Fprintf(&sb, "--batch_test\r\nContent-Type: application/http\r\nContent-ID: <response-msg-%s>\r\n\r\nHTTP/1.1 200 OK\r\nContent-Type: application/json; charset=UTF-8\r\n\r\n%s\r\n", id, payload)
	}
	sb.WriteString("--batch_test--")

	w.Header().Set("Content-Type", "multipart/mixed; boundary=batch_test")
	_, _ = io.WriteString(w, sb.String())
}

func (m *mailbox) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(m.t, json.NewEncoder(w).Encode(v))
}

func newPipeline(t *testing.T, mb *mailbox) *Service {
	t.Helper()
	mb.t = t
	srv := httptest.NewServer(mb)
	t.Cleanup(srv.Close)

	client, err := igmail.NewClient(context.Background(), testCredentials{client: srv.Client()}, igmail.Options{
		APIEndpoint:   srv.URL + "/",
		BatchEndpoint: srv.URL + "/batch/gmail/v1",
	})
	require.NoError(t, err)

	return NewService(igmail.NewScanner(client, 0, nil), client, client, Options{})
}

func TestPipeline_Invoice(t *testing.T) {
	mb := &mailbox{
		messages: map[string]*gmail.Message{
			"m1": {
				Id: "m1", ThreadId: "t1", Snippet: "Your invoice",
				Payload: &gmail.MessagePart{
					MimeType: "multipart/mixed",
					Headers: []*gmail.MessagePartHeader{
						{Name: "From", Value: "Shop <billing@shop.example>"},
						{Name: "Date", Value: "Fri, 4 Oct 2024 09:30:00 +0200"},
					},
					Parts: []*gmail.MessagePart{
						{PartId: "0", MimeType: "text/plain"},
						{PartId: "1", MimeType: "application/pdf", Filename: "inv.pdf", Body: &gmail.MessagePartBody{AttachmentId: "att-1", Size: 100}},
					},
				},
			},
			"m2": {
				Id: "m2", ThreadId: "t2", Snippet: "Re: invoice",
				Payload: &gmail.MessagePart{MimeType: "text/plain"},
			},
		},
		list: func(q, pageToken string) ([]string, string) {
			if q != "invoice AND has:attachment" || pageToken != "" {
				return nil, ""
			}
			return []string{"m1", "m2"}, "tok2"
		},
	}

	page, err := newPipeline(t, mb).Search(context.Background(), Request{Query: "invoice", PageSize: 2})
	require.NoError(t, err)

	require.Len(t, page.Emails, 1)
	assert.Equal(t, "tok2", page.Token())

	got := page.Emails[0]
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "Shop", got.SenderName)
	assert.Equal(t, "billing@shop.example", got.SenderEmail)
	require.NotNil(t, got.Date)
	assert.Equal(t, "2024-10-04T07:30:00.000Z", *got.Date)
	assert.Equal(t, []AttachmentRef{{MimeType: "application/pdf", Filename: "inv.pdf", AttachmentID: "att-1"}}, got.Attachments)
}

func TestPipeline_PageJSON(t *testing.T) {
	mb := &mailbox{
		messages: map[string]*gmail.Message{},
		list:     func(string, string) ([]string, string) { return nil, "" },
	}

	page, err := newPipeline(t, mb).Search(context.Background(), Request{Query: "none"})
	require.NoError(t, err)

	raw, err := json.Marshal(page)
	require.NoError(t, err)
	assert.JSONEq(t, `{"emails":[],"nextPageToken":null}`, string(raw))
}
