package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/attachfinder/internal/instrumentation"
)

const (
	// MaxAttachmentSize defines the maximum attachment size in bytes (25MB)
	MaxAttachmentSize = 25 * 1024 * 1024
)

// GetMessage retrieves a full Gmail message
func (c *Client) GetMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := c.observe(ctx, instrumentation.OperationGetMessage, messageID, func(ctx context.Context) error {
		var err error
		msg, err = c.svc.Messages.Get(userID, messageID).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return msg, nil
}

// ListAttachments fetches a message and extracts its attachments.
func (c *Client) ListAttachments(ctx context.Context, messageID string) ([]Attachment, error) {
	msg, err := c.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return AttachmentsFromPayload(msg), nil
}

// ResolveAttachments looks up the attachments of msg with a fresh API call.
func (c *Client) ResolveAttachments(ctx context.Context, msg *gmail.Message) ([]Attachment, error) {
	if msg == nil || msg.Id == "" {
		return nil, fmt.Errorf("message id is required")
	}
	return c.ListAttachments(ctx, msg.Id)
}

// PayloadResolver reads attachments from the payload that came back with
// the batch fetch, without further API calls.
type PayloadResolver struct{}

// ResolveAttachments walks msg's payload.
func (PayloadResolver) ResolveAttachments(_ context.Context, msg *gmail.Message) ([]Attachment, error) {
	if msg == nil {
		return nil, fmt.Errorf("message is nil")
	}
	return AttachmentsFromPayload(msg), nil
}

// AttachmentsFromPayload lists every part that has a filename and an
// attachment id, depth first.
func AttachmentsFromPayload(msg *gmail.Message) []Attachment {
	if msg == nil {
		return nil
	}

	var attachments []Attachment
	walkParts(msg.Payload, func(part *gmail.MessagePart) {
		if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
			attachments = append(attachments, Attachment{
				MessageID:    msg.Id,
				PartID:       part.PartId,
				AttachmentID: part.Body.AttachmentId,
				Filename:     part.Filename,
				MimeType:     part.MimeType,
				Size:         part.Body.Size,
			})
		}
	})
	return attachments
}

// GetAttachment retrieves and decodes the content of an attachment.
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageID is required")
	}
	if attachmentID == "" {
		return nil, fmt.Errorf("attachmentID is required")
	}

	var body *gmail.MessagePartBody
	err := c.observe(ctx, instrumentation.OperationGetAttachment, messageID, func(ctx context.Context) error {
		var err error
		body, err = c.svc.Messages.Attachments.Get(userID, messageID, attachmentID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s: %w", attachmentID, err)
	}

	if body.Size > MaxAttachmentSize {
		return nil, fmt.Errorf("attachment size %d exceeds maximum size %d", body.Size, MaxAttachmentSize)
	}

	return DecodeBase64URL(body.Data)
}

// DecodeBase64URL decodes Gmail body data. Gmail uses RFC 4648 base64url,
// sometimes without padding; standard base64 is accepted as a fallback.
func DecodeBase64URL(data string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding} {
		if decoded, err := enc.DecodeString(data); err == nil {
			return decoded, nil
		}
	}
	return nil, fmt.Errorf("failed to decode attachment data")
}

// walkParts recursively walks through message parts
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}

	fn(part)

	for _, subpart := range part.Parts {
		walkParts(subpart, fn)
	}
}

// SanitizeFilename sanitizes a filename to prevent path traversal attacks
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")
	return filename
}

// ValidateMimeType checks if a MIME type is in the allowed list
func ValidateMimeType(mimeType string, allowedTypes []string) bool {
	if len(allowedTypes) == 0 {
		return true // No restrictions if list is empty
	}

	for _, allowed := range allowedTypes {
		if strings.EqualFold(mimeType, allowed) {
			return true
		}
	}
	return false
}
