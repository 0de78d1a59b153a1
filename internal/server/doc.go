// Package server exposes the attachment search over HTTP.
//
// ServerContext holds the credentials and a lazily created Gmail session
// shared by the REST API and the MCP tools. The session is rebuilt after a
// code exchange or logout.
//
// HTTPServer mounts, on one listener:
//   - GET  /api/search?q=&pageToken=&pageSize=
//   - GET  /api/download/{messageId}/{attachmentId}[/{filename}]
//   - POST /api/generate with {"code": "..."}
//   - POST /api/logout
//   - /healthz, /readyz and /healthz/detailed
//   - /mcp (streamable HTTP MCP), when an MCP server is configured
//
// A missing or rejected Google token is answered with 401 and a body
// carrying the consent URL. MetricsServer serves Prometheus metrics on a
// separate port.
package server
