package gmail_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/attachfinder/internal/gmail"
	"github.com/teemow/attachfinder/internal/search"
	"github.com/teemow/attachfinder/internal/server"
	"github.com/teemow/attachfinder/internal/tools/common"
)

// MaxPageSize caps the pageSize argument of gmail_search_attachments.
const MaxPageSize = gmail.MaxPageSize

// searchOutput is the page returned to MCP clients. Unlike the REST
// response it reports the suppressed per-message failures.
type searchOutput struct {
	Emails        []search.EmailSummary `json:"emails"`
	NextPageToken *string               `json:"nextPageToken"`
	Excluded      []search.Exclusion    `json:"excluded,omitempty"`
	Exhausted     bool                  `json:"exhausted,omitempty"`
}

// RegisterSearchTools registers the attachment search tool with the MCP server
func RegisterSearchTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	searchTool := mcp.NewTool("gmail_search_attachments",
		mcp.WithDescription("Search Gmail for messages with attachments. Returns one page of messages with sender, date and attachment metadata, plus a token for the next page."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Gmail search query (e.g., 'invoice', 'from:billing@example.com after:2024/01/01'). 'has:attachment' is added automatically."),
		),
		mcp.WithString("pageToken",
			mcp.Description("Token from a previous page's nextPageToken"),
		),
		mcp.WithNumber("pageSize",
			mcp.Description(fmt.Sprintf("Number of message ids to examine per page (default: %d, max: %d)", gmail.DefaultPageSize, MaxPageSize)),
		),
	)

	s.AddTool(searchTool, common.InstrumentedToolHandler("gmail_search_attachments", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearchAttachments(ctx, request, sc)
		}))

	return nil
}

func handleSearchAttachments(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, ok := stringArg(args, "query")
	if !ok {
		return mcp.NewToolResultError("query is required"), nil
	}
	pageToken, _ := stringArg(args, "pageToken")

	pageSize, err := parsePageSize(args["pageSize"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	session, errResult := common.Session(sc)
	if errResult != nil {
		return errResult, nil
	}

	page, err := session.Search.Search(ctx, search.Request{
		Query:     query,
		PageToken: pageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return common.ErrorResult(sc, "Failed to search attachments", err), nil
	}

	jsonBytes, err := json.MarshalIndent(searchOutput{
		Emails:        page.Emails,
		NextPageToken: page.NextPageToken,
		Excluded:      page.Excluded,
		Exhausted:     page.Exhausted,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format output: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// parsePageSize accepts a JSON number or omitted value. Zero means the
// default page size.
func parsePageSize(value interface{}) (int, error) {
	if value == nil {
		return 0, nil
	}
	n, ok := value.(float64)
	if !ok || n != math.Trunc(n) {
		return 0, fmt.Errorf("pageSize must be an integer")
	}
	if n < 0 || n > MaxPageSize {
		return 0, fmt.Errorf("pageSize must be between 1 and %d", MaxPageSize)
	}
	return int(n), nil
}
