package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/attachfinder/internal/server"
)

// Resource URIs.
const (
	AuthStatusURI = "user://auth/status"

	messagePrefix       = "gmail://messages/"
	attachmentsSuffix   = "/attachments"
	AttachmentsTemplate = messagePrefix + "{messageId}" + attachmentsSuffix
)

// RegisterResources registers the auth status resource and the message
// attachments resource template.
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	statusResource := mcp.NewResource(
		AuthStatusURI,
		"Authentication Status",
		mcp.WithResourceDescription("Whether a Google OAuth token is stored, and the consent URL to obtain one"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(statusResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleAuthStatus(ctx, request, sc)
	})

	attachmentsTemplate := mcp.NewResourceTemplate(
		AttachmentsTemplate,
		"Message Attachments",
		mcp.WithTemplateDescription("Attachment metadata of a Gmail message"),
		mcp.WithTemplateMIMEType("application/json"),
	)

	s.AddResourceTemplate(attachmentsTemplate, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleMessageAttachments(ctx, request, sc)
	})

	return nil
}

type authStatus struct {
	Authenticated bool   `json:"authenticated"`
	AuthURL       string `json:"authUrl,omitempty"`
}

func handleAuthStatus(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	status := authStatus{Authenticated: sc.Authenticated()}
	if !status.Authenticated {
		status.AuthURL = sc.AuthURL()
	}
	return jsonContents(request.Params.URI, status)
}

func handleMessageAttachments(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	messageID, err := messageIDFromURI(request.Params.URI)
	if err != nil {
		return nil, err
	}

	session, err := sc.Session()
	if err != nil {
		return nil, fmt.Errorf("no Gmail session available: %w", err)
	}

	attachments, err := session.Mailbox.ListAttachments(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments of %s: %w", messageID, err)
	}

	return jsonContents(request.Params.URI, map[string]interface{}{
		"messageId":   messageID,
		"attachments": attachments,
	})
}

// messageIDFromURI extracts the id from gmail://messages/{messageId}/attachments.
func messageIDFromURI(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, messagePrefix)
	if !ok {
		return "", fmt.Errorf("unsupported resource URI: %s", uri)
	}
	id, ok := strings.CutSuffix(rest, attachmentsSuffix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("unsupported resource URI: %s", uri)
	}
	return id, nil
}

func jsonContents(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
