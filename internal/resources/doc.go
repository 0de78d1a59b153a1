// Package resources provides MCP resources for exposing session and mailbox
// data. Resources are read-only data sources that MCP clients can fetch,
// such as the authentication state or the attachments of a message.
package resources
