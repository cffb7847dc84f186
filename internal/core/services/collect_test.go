package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

func TestCollector_LandsEveryPage(t *testing.T) {
	var pages [][]driven.RawItem
	for p := 0; p < 4; p++ {
		var recs []domain.Record
		for i := 0; i < 25; i++ {
			recs = append(recs, user(fmt.Sprintf("p%d-u%02d", p, i), i%2 == 0))
		}
		pages = append(pages, rawItems(recs...))
	}
	listing := newMockListing(pages...)
	target := newMockAppendTarget()
	w := newTestLandingWriter(target, domain.LandingSettings{FlushBytes: 1 << 20, FlushRecords: 30, FlushAttempts: 1})
	require.NoError(t, w.Open(context.Background()))

	result, err := NewCollector(8).Collect(context.Background(), listing, w)
	require.NoError(t, err)

	assert.True(t, result.Complete)
	assert.Equal(t, 100, result.Collected)
	assert.Equal(t, 4, result.Pages)
	assert.Equal(t, 0, result.Skipped)

	landed, err := LoadSnapshot(context.Background(), target, "snap-1")
	require.NoError(t, err)
	assert.Len(t, landed, 100)
}

func TestCollector_SkipsBadItems(t *testing.T) {
	items := rawItems(user("A", true), user("B", true))
	items = append(items,
		driven.RawItem(`{"id":""}`),
		driven.RawItem(`not json`),
	)
	target := newMockAppendTarget()
	w := newTestLandingWriter(target, domain.DefaultSettings().Landing)
	require.NoError(t, w.Open(context.Background()))

	result, err := NewCollector(2).Collect(context.Background(), newMockListing(items), w)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Collected)
	assert.Equal(t, 2, result.Skipped)
}

func TestCollector_PageErrorStopsCollection(t *testing.T) {
	listing := newMockListing(rawItems(user("A", true)), rawItems(user("B", true)), rawItems(user("C", true)))
	listing.errAt = 2
	listing.err = &domain.PageError{Page: 3, Attempts: 5, Err: domain.NewSourceError(503, "unavailable", 0)}

	target := newMockAppendTarget()
	w := newTestLandingWriter(target, domain.LandingSettings{FlushBytes: 1 << 20, FlushRecords: 1, FlushAttempts: 1})
	require.NoError(t, w.Open(context.Background()))

	result, err := NewCollector(2).Collect(context.Background(), listing, w)
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrTransientSource)
	assert.False(t, result.Complete)
	assert.Equal(t, 2, result.Collected, "records flushed before the failure stay durable")
	assert.Equal(t, 2, result.Pages)
}

func TestCollector_LandingFailureStopsCollection(t *testing.T) {
	target := newMockAppendTarget()
	target.failAppends = 100
	w := newTestLandingWriter(target, domain.LandingSettings{FlushBytes: 1 << 20, FlushRecords: 1, FlushAttempts: 2})
	require.NoError(t, w.Open(context.Background()))

	result, err := NewCollector(2).Collect(context.Background(), newMockListing(rawItems(user("A", true))), w)

	assert.ErrorIs(t, err, domain.ErrLandingWrite)
	assert.False(t, result.Complete)
	assert.Equal(t, 0, result.Collected)
}
