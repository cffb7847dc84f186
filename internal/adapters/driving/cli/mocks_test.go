package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
)

// mockCoordinator is a mock implementation of driving.RunCoordinator.
type mockCoordinator struct {
	mu sync.Mutex

	summary  *domain.RunSummary
	err      error
	runID    string
	statuses []*driving.RunStatus

	resumedID string
	statusIDs []string
}

func (m *mockCoordinator) Run(_ context.Context) (*domain.RunSummary, error) {
	return m.summary, m.err
}

func (m *mockCoordinator) Trigger(_ context.Context) (string, error) {
	return m.runID, m.err
}

func (m *mockCoordinator) Resume(_ context.Context, runID string) (*domain.RunSummary, error) {
	m.resumedID = runID
	return m.summary, m.err
}

// Status returns the queued statuses in order, repeating the last one.
func (m *mockCoordinator) Status(_ context.Context, runID string) (*driving.RunStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusIDs = append(m.statusIDs, runID)
	if len(m.statuses) == 0 {
		return nil, domain.ErrNotFound
	}
	st := m.statuses[0]
	if len(m.statuses) > 1 {
		m.statuses = m.statuses[1:]
	}
	return st, nil
}

// mockHistory is a mock implementation of driving.RunHistory.
type mockHistory struct {
	runs    []domain.Run
	latest  *domain.RunSummary
	changes map[string][]domain.ChangeEvent
	err     error

	lastLimit int
}

func (m *mockHistory) ListRuns(_ context.Context, limit int) ([]domain.Run, error) {
	m.lastLimit = limit
	return m.runs, m.err
}

func (m *mockHistory) Summary(_ context.Context, _ string) (*domain.RunSummary, error) {
	return m.latest, m.err
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

// useServices installs mocks as the wired services for one test.
func useServices(t *testing.T, runs driving.RunCoordinator, history driving.RunHistory) {
	t.Helper()
	prevRuns, prevHistory, prevSettings := runCoordinator, runHistory, settingsService
	runCoordinator, runHistory = runs, history
	t.Cleanup(func() {
		runCoordinator, runHistory, settingsService = prevRuns, prevHistory, prevSettings
	})
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	outputFormat = string(FormatText)
	configDir = ""
	_ = runsCmd.Flags().Set("limit", "20")
	_ = changesCmd.Flags().Set("type", "")

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
