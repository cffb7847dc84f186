package driven

import (
	"context"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// RunStore persists run state and run summaries.
type RunStore interface {
	// SaveRun creates or updates a run.
	SaveRun(ctx context.Context, run *domain.Run) error

	// GetRun retrieves a run by ID. Returns domain.ErrNotFound if absent.
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)

	// SaveSummary creates or replaces the summary for summary.RunID.
	SaveSummary(ctx context.Context, summary *domain.RunSummary) error

	// GetSummary retrieves the summary of a run. Returns domain.ErrNotFound if absent.
	GetSummary(ctx context.Context, runID string) (*domain.RunSummary, error)

	// LatestSummary returns the most recently completed summary.
	// Returns domain.ErrNotFound if no run has finished.
	LatestSummary(ctx context.Context) (*domain.RunSummary, error)
}
