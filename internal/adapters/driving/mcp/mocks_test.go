package mcp

import (
	"context"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
)

// mockHistory is a mock implementation of driving.RunHistory.
type mockHistory struct {
	runs      []domain.Run
	summaries map[string]*domain.RunSummary
	latest    *domain.RunSummary
	changes   map[string][]domain.ChangeEvent
	err       error

	lastLimit int
}

func (m *mockHistory) ListRuns(_ context.Context, limit int) ([]domain.Run, error) {
	m.lastLimit = limit
	return m.runs, m.err
}

func (m *mockHistory) Summary(_ context.Context, runID string) (*domain.RunSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	if s, ok := m.summaries[runID]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockHistory) LatestSummary(_ context.Context) (*domain.RunSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.latest == nil {
		return nil, domain.ErrNotFound
	}
	return m.latest, nil
}

func (m *mockHistory) Changes(_ context.Context, snapshotID string) ([]domain.ChangeEvent, error) {
	return m.changes[snapshotID], m.err
}

// mockCoordinator is a mock implementation of driving.RunCoordinator.
type mockCoordinator struct {
	runID string
	err   error
}

func (m *mockCoordinator) Run(_ context.Context) (*domain.RunSummary, error) {
	return nil, m.err
}

func (m *mockCoordinator) Trigger(_ context.Context) (string, error) {
	return m.runID, m.err
}

func (m *mockCoordinator) Resume(_ context.Context, _ string) (*domain.RunSummary, error) {
	return nil, m.err
}

func (m *mockCoordinator) Status(_ context.Context, _ string) (*driving.RunStatus, error) {
	return nil, m.err
}
