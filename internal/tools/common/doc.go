// Package common provides shared helpers for the MCP tool packages: handler
// instrumentation and the lookup of the Gmail session behind a tool call.
package common
