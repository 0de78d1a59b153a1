package gmail_tools

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/search"
)

func TestSearchAttachments(t *testing.T) {
	f := newFixture(t)
	date := "2024-10-14T10:15:30.000Z"
	next := "tok2"
	f.searcher.page = &search.Page{
		Emails: []search.EmailSummary{{
			ID:          "m1",
			ThreadID:    "t1",
			Snippet:     "Your invoice",
			Date:        &date,
			SenderName:  "Billing",
			SenderEmail: "billing@example.com",
			Attachments: []search.AttachmentRef{{MimeType: "application/pdf", Filename: "inv.pdf", AttachmentID: "a1"}},
		}},
		NextPageToken: &next,
		Excluded:      []search.Exclusion{{MessageID: "m2", Stage: search.StageResolve, Reason: "boom"}},
	}

	result, err := handleSearchAttachments(context.Background(), callRequest(map[string]interface{}{
		"query":     "invoice",
		"pageToken": "tok1",
		"pageSize":  float64(2),
	}), f.sc)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	require.Len(t, f.searcher.reqs, 1)
	assert.Equal(t, search.Request{Query: "invoice", PageToken: "tok1", PageSize: 2}, f.searcher.reqs[0])

	var out searchOutput
	decodeJSON(t, resultText(t, result), &out)
	require.Len(t, out.Emails, 1)
	assert.Equal(t, "m1", out.Emails[0].ID)
	assert.Equal(t, "inv.pdf", out.Emails[0].Attachments[0].Filename)
	require.NotNil(t, out.NextPageToken)
	assert.Equal(t, "tok2", *out.NextPageToken)
	assert.Equal(t, []search.Exclusion{{MessageID: "m2", Stage: search.StageResolve, Reason: "boom"}}, out.Excluded)
	assert.False(t, out.Exhausted)
}

func TestSearchAttachments_EmptyPage(t *testing.T) {
	f := newFixture(t)

	result, err := handleSearchAttachments(context.Background(), callRequest(map[string]interface{}{"query": "nothing"}), f.sc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"emails":[],"nextPageToken":null}`, resultText(t, result))
	assert.Equal(t, 0, f.searcher.reqs[0].PageSize)
}

func TestSearchAttachments_ArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing query", map[string]interface{}{}, "query is required"},
		{"empty query", map[string]interface{}{"query": ""}, "query is required"},
		{"fractional page size", map[string]interface{}{"query": "q", "pageSize": 2.5}, "pageSize must be an integer"},
		{"string page size", map[string]interface{}{"query": "q", "pageSize": "5"}, "pageSize must be an integer"},
		{"negative page size", map[string]interface{}{"query": "q", "pageSize": float64(-1)}, "pageSize must be between 1 and 100"},
		{"page size too large", map[string]interface{}{"query": "q", "pageSize": float64(MaxPageSize + 1)}, "pageSize must be between 1 and 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			result, err := handleSearchAttachments(context.Background(), callRequest(tt.args), f.sc)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Equal(t, tt.want, resultText(t, result))
			assert.Empty(t, f.searcher.reqs)
		})
	}
}

func TestSearchAttachments_Unauthenticated(t *testing.T) {
	f := newFixture(t)
	f.auth.hasToken = false

	result, err := handleSearchAttachments(context.Background(), callRequest(map[string]interface{}{"query": "invoice"}), f.sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), testAuthURL)
}

func TestSearchAttachments_Errors(t *testing.T) {
	f := newFixture(t)

	f.searcher.err = fmt.Errorf("failed to fetch messages: %w", &gmail.BatchError{StatusCode: http.StatusUnauthorized})
	result, err := handleSearchAttachments(context.Background(), callRequest(map[string]interface{}{"query": "q"}), f.sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), testAuthURL)

	f.searcher.err = errBoom
	result, err = handleSearchAttachments(context.Background(), callRequest(map[string]interface{}{"query": "q"}), f.sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Failed to search attachments: boom", resultText(t, result))
}

func TestParsePageSize(t *testing.T) {
	n, err := parsePageSize(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = parsePageSize(float64(25))
	require.NoError(t, err)
	assert.Equal(t, 25, n)
}
