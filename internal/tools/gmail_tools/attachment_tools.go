package gmail_tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/server"
	"github.com/teemow/attachfinder/internal/tools/batch"
	"github.com/teemow/attachfinder/internal/tools/common"
)

type attachmentOutput struct {
	AttachmentID string `json:"attachmentId"`
	PartID       string `json:"partId"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	SizeHuman    string `json:"sizeHuman"`
}

// RegisterAttachmentTools registers attachment-related tools with the MCP server
func RegisterAttachmentTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// List attachments tool
	listAttachmentsTool := mcp.NewTool("gmail_list_attachments",
		mcp.WithDescription("List the attachments of one or more Gmail messages"),
		mcp.WithString("messageIds",
			mcp.Required(),
			mcp.Description("Message ID (string) or array of message IDs"),
		),
		mcp.WithString("mimeTypes",
			mcp.Description("Only return attachments of these MIME types (string or array, e.g. 'application/pdf')"),
		),
	)

	s.AddTool(listAttachmentsTool, common.InstrumentedToolHandler("gmail_list_attachments", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListAttachments(ctx, request, sc)
		}))

	// Get attachment tool
	getAttachmentTool := mcp.NewTool("gmail_get_attachment",
		mcp.WithDescription("Get the content of an attachment"),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("The ID of the Gmail message"),
		),
		mcp.WithString("attachmentId",
			mcp.Required(),
			mcp.Description("The ID of the attachment"),
		),
		mcp.WithString("encoding",
			mcp.Description("Encoding format: 'base64' (default) or 'text'"),
		),
	)

	s.AddTool(getAttachmentTool, common.InstrumentedToolHandler("gmail_get_attachment", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetAttachment(ctx, request, sc)
		}))

	return nil
}

func handleListAttachments(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	messageIDs, err := batch.ParseStringOrArray(args["messageIds"], "messageIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mimeTypes, err := batch.ParseOptionalStringOrArray(args["mimeTypes"], "mimeTypes")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	session, errResult := common.Session(sc)
	if errResult != nil {
		return errResult, nil
	}

	list := func(ctx context.Context, messageID string) ([]attachmentOutput, error) {
		attachments, err := session.Mailbox.ListAttachments(ctx, messageID)
		if err != nil {
			return nil, err
		}
		return toAttachmentOutputs(attachments, mimeTypes), nil
	}

	if len(messageIDs) > 1 {
		results := batch.ProcessBatch(ctx, messageIDs, list)
		return mcp.NewToolResultText(batch.FormatResults(results)), nil
	}

	outputs, err := list(ctx, messageIDs[0])
	if err != nil {
		return common.ErrorResult(sc, "Failed to list attachments", err), nil
	}
	if len(outputs) == 0 {
		return mcp.NewToolResultText("No attachments found in message"), nil
	}

	jsonBytes, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format output: %v", err)), nil
	}

	result := fmt.Sprintf("Found %d attachment(s):\n%s", len(outputs), string(jsonBytes))
	return mcp.NewToolResultText(result), nil
}

func handleGetAttachment(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	messageID, ok := stringArg(args, "messageId")
	if !ok {
		return mcp.NewToolResultError("messageId is required"), nil
	}

	attachmentID, ok := stringArg(args, "attachmentId")
	if !ok {
		return mcp.NewToolResultError("attachmentId is required"), nil
	}

	encoding := "base64"
	if encodingVal, ok := stringArg(args, "encoding"); ok {
		encoding = encodingVal
	}
	if encoding != "base64" && encoding != "text" {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid encoding '%s', must be 'base64' or 'text'", encoding)), nil
	}

	session, errResult := common.Session(sc)
	if errResult != nil {
		return errResult, nil
	}

	data, err := session.Mailbox.GetAttachment(ctx, messageID, attachmentID)
	if err != nil {
		return common.ErrorResult(sc, "Failed to get attachment", err), nil
	}

	if encoding == "text" {
		if !utf8.Valid(data) {
			return mcp.NewToolResultError("Attachment is not valid UTF-8 text, use encoding 'base64'"), nil
		}
		result := fmt.Sprintf("Attachment content (text, %d bytes):\n%s", len(data), data)
		return mcp.NewToolResultText(result), nil
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	result := fmt.Sprintf("Attachment content (base64, %d bytes):\n%s", len(data), encoded)
	return mcp.NewToolResultText(result), nil
}

// toAttachmentOutputs converts attachments, keeping only the allowed MIME
// types when any are given.
func toAttachmentOutputs(attachments []gmail.Attachment, mimeTypes []string) []attachmentOutput {
	outputs := make([]attachmentOutput, 0, len(attachments))
	for _, att := range attachments {
		if !gmail.ValidateMimeType(att.MimeType, mimeTypes) {
			continue
		}
		outputs = append(outputs, attachmentOutput{
			AttachmentID: att.AttachmentID,
			PartID:       att.PartID,
			Filename:     att.Filename,
			MimeType:     att.MimeType,
			Size:         att.Size,
			SizeHuman:    formatSize(att.Size),
		})
	}
	return outputs
}

// formatSize formats a byte size into human-readable format
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
