package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// Label values derived from user data (message ids, filenames, sender
// addresses) must pass through these before being recorded.

// NormalizePath reduces a request path to its route so that per-message
// URLs do not create one time series each.
//
// Example:
//
//	NormalizePath("/api/download/18c/ANGj/report.pdf")  // "/api/download"
//	NormalizePath("/api/search")                        // "/api/search"
//	NormalizePath("/favicon.ico")                       // "other"
func NormalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/download/"), path == "/api/download":
		return "/api/download"
	case strings.HasPrefix(path, "/mcp"):
		return "/mcp"
	}
	for _, known := range knownPaths {
		if path == known {
			return path
		}
	}
	return "other"
}

var knownPaths = []string{
	"/api/search",
	"/api/generate",
	"/api/logout",
	"/healthz",
	"/readyz",
	"/healthz/detailed",
}

// SenderDomain extracts the domain part from a sender address.
//
//	SenderDomain("jane@example.com")  // "example.com"
//	SenderDomain("invalid")           // "unknown"
func SenderDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// Operation types for Google API metrics.
const (
	OperationList          = "list"
	OperationBatchGet      = "batch_get"
	OperationGetMessage    = "get_message"
	OperationGetAttachment = "get_attachment"
	OperationSearch        = "search"
	OperationExchange      = "exchange"
)
