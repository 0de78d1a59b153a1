package gmail_tools

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/tools/batch"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{name: "bytes", bytes: 512, want: "512 bytes"},
		{name: "kilobytes", bytes: 1536, want: "1.50 KB"},
		{name: "megabytes", bytes: 5242880, want: "5.00 MB"},
		{name: "gigabytes", bytes: 2147483648, want: "2.00 GB"},
		{name: "exact 1KB", bytes: 1024, want: "1.00 KB"},
		{name: "exact 1MB", bytes: 1048576, want: "1.00 MB"},
		{name: "exact 1GB", bytes: 1073741824, want: "1.00 GB"},
		{name: "zero bytes", bytes: 0, want: "0 bytes"},
		{name: "fractional MB", bytes: 1572864, want: "1.50 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}

func invoiceAttachments() []gmail.Attachment {
	return []gmail.Attachment{
		{MessageID: "m1", PartID: "1", AttachmentID: "a1", Filename: "inv.pdf", MimeType: "application/pdf", Size: 2048},
		{MessageID: "m1", PartID: "2.0", AttachmentID: "a2", Filename: "logo.png", MimeType: "image/png", Size: 512},
	}
}

func TestListAttachments_Single(t *testing.T) {
	f := newFixture(t)
	f.mailbox.attachments["m1"] = invoiceAttachments()

	result, err := handleListAttachments(context.Background(), callRequest(map[string]interface{}{"messageIds": "m1"}), f.sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	require.True(t, strings.HasPrefix(text, "Found 2 attachment(s):\n"), text)

	var outputs []attachmentOutput
	decodeJSON(t, strings.TrimPrefix(text, "Found 2 attachment(s):\n"), &outputs)
	assert.Equal(t, []attachmentOutput{
		{AttachmentID: "a1", PartID: "1", Filename: "inv.pdf", MimeType: "application/pdf", Size: 2048, SizeHuman: "2.00 KB"},
		{AttachmentID: "a2", PartID: "2.0", Filename: "logo.png", MimeType: "image/png", Size: 512, SizeHuman: "512 bytes"},
	}, outputs)
}

func TestListAttachments_MimeFilter(t *testing.T) {
	f := newFixture(t)
	f.mailbox.attachments["m1"] = invoiceAttachments()

	result, err := handleListAttachments(context.Background(), callRequest(map[string]interface{}{
		"messageIds": "m1",
		"mimeTypes":  "APPLICATION/PDF",
	}), f.sc)
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "Found 1 attachment(s)")
	assert.NotContains(t, resultText(t, result), "logo.png")

	result, err = handleListAttachments(context.Background(), callRequest(map[string]interface{}{
		"messageIds": "m1",
		"mimeTypes":  []interface{}{"text/calendar"},
	}), f.sc)
	require.NoError(t, err)
	assert.Equal(t, "No attachments found in message", resultText(t, result))
}

func TestListAttachments_Batch(t *testing.T) {
	f := newFixture(t)
	f.mailbox.attachments["m1"] = invoiceAttachments()
	f.mailbox.attachments["m2"] = nil

	result, err := handleListAttachments(context.Background(), callRequest(map[string]interface{}{
		"messageIds": []interface{}{"m1", "m2", "missing"},
	}), f.sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var br batch.BatchResult
	decodeJSON(t, resultText(t, result), &br)
	assert.Equal(t, 3, br.Total)
	assert.Equal(t, 2, br.Successful)
	assert.Equal(t, 1, br.Failed)

	require.Len(t, br.Results, 3)
	assert.Equal(t, "m1", br.Results[0].ID)
	var outputs []attachmentOutput
	decodeJSON(t, string(br.Results[0].Result), &outputs)
	assert.Len(t, outputs, 2)
	assert.JSONEq(t, `[]`, string(br.Results[1].Result))
	assert.Equal(t, "message not found", br.Results[2].Error)
}

func TestListAttachments_ArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing messageIds", map[string]interface{}{}, "messageIds is required"},
		{"empty messageIds", map[string]interface{}{"messageIds": ""}, "messageIds cannot be empty"},
		{"wrong type messageIds", map[string]interface{}{"messageIds": 123}, "messageIds must be a string or array of strings"},
		{"wrong type mimeTypes", map[string]interface{}{"messageIds": "m1", "mimeTypes": 1}, "mimeTypes must be a string or array of strings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			result, err := handleListAttachments(context.Background(), callRequest(tt.args), f.sc)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Equal(t, tt.want, resultText(t, result))
		})
	}
}

func TestListAttachments_Errors(t *testing.T) {
	f := newFixture(t)
	f.mailbox.err = errBoom

	result, err := handleListAttachments(context.Background(), callRequest(map[string]interface{}{"messageIds": "m1"}), f.sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Failed to list attachments: boom", resultText(t, result))

	f2 := newFixture(t)
	f2.auth.hasToken = false
	result, err = handleListAttachments(context.Background(), callRequest(map[string]interface{}{"messageIds": "m1"}), f2.sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), testAuthURL)
}

func TestGetAttachment(t *testing.T) {
	f := newFixture(t)
	f.mailbox.data["m1/a1"] = []byte("%PDF-1.4")
	f.mailbox.data["m1/a3"] = []byte("BEGIN:VCALENDAR")
	f.mailbox.data["m1/bin"] = []byte{0xff, 0xfe, 0x00}

	result, err := handleGetAttachment(context.Background(), callRequest(map[string]interface{}{
		"messageId":    "m1",
		"attachmentId": "a1",
	}), f.sc)
	require.NoError(t, err)
	assert.Equal(t, "Attachment content (base64, 8 bytes):\n"+base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")), resultText(t, result))

	result, err = handleGetAttachment(context.Background(), callRequest(map[string]interface{}{
		"messageId":    "m1",
		"attachmentId": "a3",
		"encoding":     "text",
	}), f.sc)
	require.NoError(t, err)
	assert.Equal(t, "Attachment content (text, 15 bytes):\nBEGIN:VCALENDAR", resultText(t, result))

	result, err = handleGetAttachment(context.Background(), callRequest(map[string]interface{}{
		"messageId":    "m1",
		"attachmentId": "bin",
		"encoding":     "text",
	}), f.sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGetAttachment_ArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing messageId", map[string]interface{}{"attachmentId": "a1"}, "messageId is required"},
		{"missing attachmentId", map[string]interface{}{"messageId": "m1"}, "attachmentId is required"},
		{"empty attachmentId", map[string]interface{}{"messageId": "m1", "attachmentId": ""}, "attachmentId is required"},
		{"invalid encoding", map[string]interface{}{"messageId": "m1", "attachmentId": "a1", "encoding": "hex"}, "Invalid encoding 'hex', must be 'base64' or 'text'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			result, err := handleGetAttachment(context.Background(), callRequest(tt.args), f.sc)
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Equal(t, tt.want, resultText(t, result))
		})
	}
}

func TestGetAttachment_Error(t *testing.T) {
	f := newFixture(t)
	f.mailbox.err = errBoom

	result, err := handleGetAttachment(context.Background(), callRequest(map[string]interface{}{
		"messageId":    "m1",
		"attachmentId": "a1",
	}), f.sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Failed to get attachment: boom", resultText(t, result))
}
