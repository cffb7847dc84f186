package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
)

func completedSummary() *domain.RunSummary {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.RunSummary{
		RunID:              "run-1",
		SnapshotID:         "snap-1",
		TotalUsers:         3,
		NewUsers:           1,
		ModifiedUsers:      1,
		UnchangedUsers:     1,
		WriteCount:         2,
		ChangeLogCount:     2,
		DeltaMode:          true,
		CollectionComplete: true,
		State:              domain.RunCompleted,
		StartedAt:          start,
		CompletedAt:        start.Add(1500 * time.Millisecond),
	}
}

func TestVersionCmd(t *testing.T) {
	original := version
	t.Cleanup(func() { version = original })
	useServices(t, nil, nil)

	SetVersion("1.2.3")
	stdout, _, err := execute(t, "version")

	require.NoError(t, err)
	assert.Contains(t, stdout, "dirsync version 1.2.3")
}

func TestRunCmd_PrintsSummary(t *testing.T) {
	useServices(t, &mockCoordinator{summary: completedSummary()}, &mockHistory{})

	stdout, _, err := execute(t, "run")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Run run-1 completed")
	assert.Contains(t, stdout, "Total users:")
	assert.Contains(t, stdout, "2 (0 failed)")
	assert.Contains(t, stdout, "1.5s")
}

func TestRunCmd_PartialFailureSuggestsResume(t *testing.T) {
	summary := completedSummary()
	summary.State = domain.RunPartiallyFailed
	summary.Error = "store unavailable"
	useServices(t, &mockCoordinator{summary: summary, err: errors.New("store unavailable")}, &mockHistory{})

	stdout, _, err := execute(t, "run")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirsync resume run-1")
	assert.Contains(t, stdout, "partially_failed")
	assert.Contains(t, stdout, "store unavailable")
}

func TestRunCmd_CollectionFailureHasNoSummary(t *testing.T) {
	useServices(t, &mockCoordinator{err: errors.New("source down")}, &mockHistory{})

	stdout, _, err := execute(t, "run")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run failed")
	assert.Empty(t, stdout)
}

func TestRunCmd_JSONOutput(t *testing.T) {
	useServices(t, &mockCoordinator{summary: completedSummary()}, &mockHistory{})

	stdout, _, err := execute(t, "run", "-o", "json")
	require.NoError(t, err)

	var got domain.RunSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "snap-1", got.SnapshotID)
	assert.Equal(t, 2, got.WriteCount)
	assert.Equal(t, domain.RunCompleted, got.State)
}

func TestRunCmd_YAMLOutput(t *testing.T) {
	useServices(t, &mockCoordinator{summary: completedSummary()}, &mockHistory{})

	stdout, _, err := execute(t, "run", "--output", "yaml")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "run-1", got["runId"])
	assert.Equal(t, "completed", got["state"])
}

func TestRootCmd_RejectsUnknownFormat(t *testing.T) {
	useServices(t, &mockCoordinator{summary: completedSummary()}, &mockHistory{})

	_, _, err := execute(t, "run", "-o", "xml")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTriggerCmd_FollowsRunToCompletion(t *testing.T) {
	original := pollInterval
	pollInterval = time.Millisecond
	t.Cleanup(func() { pollInterval = original })

	coordinator := &mockCoordinator{
		runID: "run-1",
		statuses: []*driving.RunStatus{
			{Run: domain.Run{ID: "run-1", State: domain.RunPending}, Running: true},
			{Run: domain.Run{ID: "run-1", State: domain.RunCollecting, Collected: 2}, Running: true},
			{Run: domain.Run{ID: "run-1", State: domain.RunCompleted, Collected: 3}, Summary: completedSummary()},
		},
	}
	useServices(t, coordinator, &mockHistory{})

	stdout, stderr, err := execute(t, "trigger")

	require.NoError(t, err)
	assert.Contains(t, stderr, "Triggered run run-1")
	assert.Contains(t, stderr, "collecting (2 collected)")
	assert.Contains(t, stdout, "Run run-1 completed")
	for _, id := range coordinator.statusIDs {
		assert.Equal(t, "run-1", id)
	}
}

func TestTriggerCmd_RunInProgress(t *testing.T) {
	useServices(t, &mockCoordinator{err: domain.ErrRunInProgress}, &mockHistory{})

	_, _, err := execute(t, "trigger")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
}

func TestTriggerCmd_FailedRunReturnsError(t *testing.T) {
	original := pollInterval
	pollInterval = time.Millisecond
	t.Cleanup(func() { pollInterval = original })

	failed := completedSummary()
	failed.State = domain.RunFailed
	failed.Error = "page 2: unauthorized"
	coordinator := &mockCoordinator{
		runID: "run-1",
		statuses: []*driving.RunStatus{
			{Run: domain.Run{ID: "run-1", State: domain.RunFailed, Error: "page 2: unauthorized"}, Summary: failed},
		},
	}
	useServices(t, coordinator, &mockHistory{})

	_, _, err := execute(t, "trigger")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 2: unauthorized")
}

func TestResumeCmd_PassesRunID(t *testing.T) {
	coordinator := &mockCoordinator{summary: completedSummary()}
	useServices(t, coordinator, &mockHistory{})

	_, _, err := execute(t, "resume", "run-7")

	require.NoError(t, err)
	assert.Equal(t, "run-7", coordinator.resumedID)
}

func TestResumeCmd_RequiresRunID(t *testing.T) {
	useServices(t, &mockCoordinator{}, &mockHistory{})

	_, _, err := execute(t, "resume")

	assert.Error(t, err)
}

func TestStatusCmd_DefaultsToLatestRun(t *testing.T) {
	coordinator := &mockCoordinator{
		statuses: []*driving.RunStatus{
			{Run: domain.Run{ID: "run-9", State: domain.RunReconciling, Collected: 40, Attempt: 1}, Running: true},
		},
	}
	history := &mockHistory{runs: []domain.Run{{ID: "run-9"}}}
	useServices(t, coordinator, history)

	stdout, _, err := execute(t, "status")

	require.NoError(t, err)
	assert.Equal(t, 1, history.lastLimit)
	assert.Equal(t, []string{"run-9"}, coordinator.statusIDs)
	assert.Contains(t, stdout, "Run run-9 reconciling")
	assert.Contains(t, stdout, "40")
}

func TestStatusCmd_NoRuns(t *testing.T) {
	useServices(t, &mockCoordinator{}, &mockHistory{})

	stdout, _, err := execute(t, "status")

	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs yet.")
}

func TestStatusCmd_UnknownRun(t *testing.T) {
	useServices(t, &mockCoordinator{}, &mockHistory{})

	_, _, err := execute(t, "status", "missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunsCmd_ListsRuns(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := &mockHistory{runs: []domain.Run{
		{ID: "run-2", State: domain.RunPartiallyFailed, Collected: 10, StartedAt: started, Error: "store down"},
		{ID: "run-1", State: domain.RunCompleted, Collected: 10, StartedAt: started.Add(-time.Hour)},
	}}
	useServices(t, &mockCoordinator{}, history)

	stdout, _, err := execute(t, "runs", "--limit", "5")

	require.NoError(t, err)
	assert.Equal(t, 5, history.lastLimit)
	assert.Contains(t, stdout, "run-2")
	assert.Contains(t, stdout, "store down")
	assert.Contains(t, stdout, "2026-03-01 11:00:00")
}

func TestChangesCmd_DefaultsToLatestSnapshot(t *testing.T) {
	history := &mockHistory{
		latest: completedSummary(),
		changes: map[string][]domain.ChangeEvent{
			"snap-1": {
				{ID: "u1", ChangeType: domain.ChangeNew, Record: domain.Record{ID: "u1", UserPrincipalName: domain.String("alice@example.com")}},
				{
					ID:         "u2",
					ChangeType: domain.ChangeModified,
					Changes: map[string]domain.FieldDelta{
						domain.FieldAccountEnabled: {Old: true, New: false},
					},
				},
				{ID: "u3", ChangeType: domain.ChangeDeleted},
			},
		},
	}
	useServices(t, &mockCoordinator{}, history)

	stdout, _, err := execute(t, "changes")

	require.NoError(t, err)
	assert.Contains(t, stdout, "+ u1 (alice@example.com)")
	assert.Contains(t, stdout, "~ u2")
	assert.Contains(t, stdout, "accountEnabled: true -> false")
	assert.Contains(t, stdout, "- u3")
}

func TestChangesCmd_FiltersByType(t *testing.T) {
	history := &mockHistory{
		changes: map[string][]domain.ChangeEvent{
			"snap-5": {
				{ID: "u1", ChangeType: domain.ChangeNew},
				{ID: "u3", ChangeType: domain.ChangeDeleted},
			},
		},
	}
	useServices(t, &mockCoordinator{}, history)

	stdout, _, err := execute(t, "changes", "snap-5", "--type", "deleted", "-o", "json")
	require.NoError(t, err)

	var got []domain.ChangeEvent
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "u3", got[0].ID)
}

func TestChangesCmd_RejectsUnknownType(t *testing.T) {
	useServices(t, &mockCoordinator{}, &mockHistory{})

	_, _, err := execute(t, "changes", "snap-5", "--type", "renamed")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChangesCmd_NoRunsYet(t *testing.T) {
	useServices(t, &mockCoordinator{}, &mockHistory{})

	_, _, err := execute(t, "changes")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSettingsCmd_SetShowAndPath(t *testing.T) {
	useServices(t, nil, nil)
	settingsService = nil
	dir := t.TempDir()

	_, _, err := execute(t, "settings", "set", "source.type", "github", "--config-dir", dir)
	require.NoError(t, err)
	_, stderr, err := execute(t, "settings", "set", "pager.page_size", "250", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stderr, "configuration is now invalid")

	_, _, err = execute(t, "settings", "set", "source.org", "custodia-labs", "--config-dir", dir)
	require.NoError(t, err)
	_, _, err = execute(t, "settings", "set", "auth.client_secret", "super-secret-value", "--config-dir", dir)
	require.NoError(t, err)

	stdout, _, err := execute(t, "settings", "show", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "github")
	assert.Contains(t, stdout, "custodia-labs")
	assert.Contains(t, stdout, "250")
	assert.Contains(t, stdout, "supe...alue")
	assert.NotContains(t, stdout, "super-secret-value")

	stdout, _, err = execute(t, "settings", "path", "--config-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, filepath.Join(dir, "config.toml"))

	data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "page_size = 250")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, int64(42), parseValue("42"))
	assert.Equal(t, 2.5, parseValue("2.5"))
	assert.Equal(t, "6h", parseValue("6h"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", maskSecret(""))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "abcd...mnop", maskSecret("abcdefghijklmnop"))
}
