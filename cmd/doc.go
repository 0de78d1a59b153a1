// Package cmd implements the command-line interface for attachfinder.
//
// This package provides the following commands:
//   - serve: Start the REST API and MCP server (HTTP or stdio transport)
//   - search: Run one attachment search page and print it
//   - auth: Manage the Google OAuth token (url, login, logout, status)
//   - config: Show or initialize the configuration file
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
package cmd
