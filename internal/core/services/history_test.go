package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

func TestRunHistoryService(t *testing.T) {
	ctx := context.Background()
	runs := newMockRunStore()
	changes := newMockChangeLogStore()
	svc := NewRunHistoryService(runs, changes)

	_, err := svc.LatestSummary(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, runs.SaveRun(ctx, &domain.Run{ID: "r1", SnapshotID: "s1", State: domain.RunCompleted}))
	require.NoError(t, runs.SaveRun(ctx, &domain.Run{ID: "r2", SnapshotID: "s2", State: domain.RunFailed}))
	require.NoError(t, runs.SaveSummary(ctx, &domain.RunSummary{RunID: "r1", SnapshotID: "s1", NewUsers: 2}))
	require.NoError(t, changes.AppendChanges(ctx, "s1", []domain.ChangeEvent{
		{ID: "A", ChangeType: domain.ChangeNew, SnapshotID: "s1"},
	}))

	list, err := svc.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r2", list[0].ID, "newest first")

	latest, err := svc.LatestSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", latest.RunID)

	summary, err := svc.Summary(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NewUsers)

	events, err := svc.Changes(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = svc.Summary(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.Changes(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
