package services

import (
	"context"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
)

// Ensure RunHistoryService implements the interface.
var _ driving.RunHistory = (*RunHistoryService)(nil)

const defaultHistoryLimit = 20

// RunHistoryService reads past runs and change events.
type RunHistoryService struct {
	runs    driven.RunStore
	changes driven.ChangeLogStore
}

// NewRunHistoryService creates a new run history service.
func NewRunHistoryService(runs driven.RunStore, changes driven.ChangeLogStore) *RunHistoryService {
	return &RunHistoryService{runs: runs, changes: changes}
}

// ListRuns returns the most recent runs, newest first.
func (s *RunHistoryService) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.runs.ListRuns(ctx, limit)
}

// Summary returns the summary of a run.
func (s *RunHistoryService) Summary(ctx context.Context, runID string) (*domain.RunSummary, error) {
	if runID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.runs.GetSummary(ctx, runID)
}

// LatestSummary returns the summary of the most recent finished run.
func (s *RunHistoryService) LatestSummary(ctx context.Context) (*domain.RunSummary, error) {
	return s.runs.LatestSummary(ctx)
}

// Changes returns the change events recorded for a snapshot.
func (s *RunHistoryService) Changes(ctx context.Context, snapshotID string) ([]domain.ChangeEvent, error) {
	if snapshotID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.changes.ListChanges(ctx, snapshotID)
}
