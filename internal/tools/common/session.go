package common

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/attachfinder/internal/server"
)

// AuthRequiredMessage tells the agent how to complete the consent flow.
func AuthRequiredMessage(authURL string) string {
	return fmt.Sprintf(`Gmail OAuth token not found or expired. To authorize access:

1. Visit this URL in your browser:
   %s

2. Sign in with your Google account
3. Grant read access to Gmail
4. Copy the authorization code

5. Provide the authorization code to your AI agent
   The agent will use the google_save_auth_code tool to complete authentication.

Note: You only need to authorize once. The tokens will be automatically refreshed.`, authURL)
}

// Session returns the Gmail session for a tool call. When it cannot be
// created the second return value is the error result to hand back.
func Session(sc *server.ServerContext) (*server.Session, *mcp.CallToolResult) {
	session, err := sc.Session()
	if err != nil {
		return nil, ErrorResult(sc, "Failed to create Gmail session", err)
	}
	return session, nil
}

// ErrorResult turns err into a tool error. Auth errors carry the consent
// instructions instead of the raw error.
func ErrorResult(sc *server.ServerContext, action string, err error) *mcp.CallToolResult {
	if server.IsAuthError(err) {
		return mcp.NewToolResultError(AuthRequiredMessage(sc.AuthURL()))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", action, err))
}
