// Package batch provides helpers for MCP tools that operate on several ids
// in one call.
//
// This package includes helpers for:
//   - Parsing parameters that accept a single value, an array or a JSON array string
//   - Running one operation per id concurrently while keeping partial failures
//   - Formatting the per-id results in a consistent structure
package batch
