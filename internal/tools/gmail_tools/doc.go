// Package gmail_tools provides MCP (Model Context Protocol) tools for finding
// and reading Gmail attachments.
//
// Tools:
//   - gmail_search_attachments: one page of messages with attachments matching a query
//   - gmail_list_attachments: attachment metadata of one or more messages
//   - gmail_get_attachment: attachment content as base64 or text
//
// Example usage:
//
//	// Find invoices, two messages per page
//	gmail_search_attachments(query: "invoice", pageSize: 2)
//
//	// Continue with the token from the previous page
//	gmail_search_attachments(query: "invoice", pageToken: "tok2")
//
//	// List only the PDFs of two messages
//	gmail_list_attachments(messageIds: ["m1", "m2"], mimeTypes: "application/pdf")
//
//	// Get attachment content as text (for .ics, .csv, etc.)
//	gmail_get_attachment(messageId: "m1", attachmentId: "a1", encoding: "text")
//
// All tools use the Gmail session held by the server context. Without a
// stored token they return the consent instructions.
package gmail_tools
