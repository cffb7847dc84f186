// Package mcp provides an MCP (Model Context Protocol) server adapter for dirsync.
// It lets AI assistants read run summaries and change events.
package mcp

import "errors"

// ErrMissingHistory is returned when the run history service is not provided.
var ErrMissingHistory = errors.New("mcp: run history service is required")
