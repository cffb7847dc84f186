package driving

import (
	"context"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// RunCoordinator drives directory runs through collect, reconcile and persist.
type RunCoordinator interface {
	// Run executes a full run synchronously and returns its summary.
	// The summary is returned alongside the error when the run fails after collection.
	Run(ctx context.Context) (*domain.RunSummary, error)

	// Trigger starts a run in the background and returns its ID immediately.
	// Returns domain.ErrRunInProgress if a run is already executing.
	Trigger(ctx context.Context) (string, error)

	// Resume re-runs reconcile and persist for a run whose collection completed,
	// reusing its landing snapshot without querying the source.
	Resume(ctx context.Context, runID string) (*domain.RunSummary, error)

	// Status returns the live or persisted status of a run.
	Status(ctx context.Context, runID string) (*RunStatus, error)
}

// RunStatus represents the current state of a run.
type RunStatus struct {
	// Run is the run state machine record.
	Run domain.Run

	// Running indicates the run is executing in this process.
	Running bool

	// Summary is set once the run has reached a terminal state.
	Summary *domain.RunSummary
}

// RunHistory answers read-only questions about past runs.
// Used by the CLI and MCP adapters.
type RunHistory interface {
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)

	// Summary returns the summary of a run.
	Summary(ctx context.Context, runID string) (*domain.RunSummary, error)

	// LatestSummary returns the summary of the most recent finished run.
	LatestSummary(ctx context.Context) (*domain.RunSummary, error)

	// Changes returns the change events recorded for a snapshot.
	Changes(ctx context.Context, snapshotID string) ([]domain.ChangeEvent, error)
}
