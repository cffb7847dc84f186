package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
type RunStore struct {
	mu        sync.RWMutex
	runs      map[string]domain.Run
	summaries map[string]domain.RunSummary
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:      make(map[string]domain.Run),
		summaries: make(map[string]domain.RunSummary),
	}
}

// SaveRun creates or updates a run.
func (s *RunStore) SaveRun(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]domain.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID > runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// SaveSummary creates or replaces a run summary.
func (s *RunStore) SaveSummary(_ context.Context, summary *domain.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.RunID] = *summary
	return nil
}

// GetSummary retrieves the summary of a run.
func (s *RunStore) GetSummary(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &summary, nil
}

// LatestSummary returns the summary with the latest completion time.
func (s *RunStore) LatestSummary(_ context.Context) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.RunSummary
	for _, summary := range s.summaries {
		if latest == nil || summary.CompletedAt.After(latest.CompletedAt) {
			latest = &summary
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}
