package mcp

import (
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// History answers questions about past runs.
	History driving.RunHistory

	// Runs triggers new runs. Optional; the trigger_run tool is only
	// registered when set.
	Runs driving.RunCoordinator
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.History == nil {
		return ErrMissingHistory
	}
	return nil
}
