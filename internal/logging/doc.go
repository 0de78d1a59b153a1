// Package logging provides structured logging utilities for attachfinder.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "gmail.batch")
//	logger.Warn("skipping batch part",
//	    logging.Part(3), logging.Err(err))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("search completed",
//	    logging.QueryHash(query))
//
// # Security Considerations
//
//   - Search queries and sender addresses are hashed, never logged verbatim
//   - Tokens are never logged directly
package logging
