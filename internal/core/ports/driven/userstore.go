package driven

import (
	"context"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// UserStore persists directory users keyed by id.
// The live (non-tombstoned) rows form the baseline of the next run.
type UserStore interface {
	// Upsert creates or replaces the user document and clears any tombstone.
	Upsert(ctx context.Context, rec domain.Record, snapshotID string) error

	// Tombstone marks a user as deleted so it leaves the baseline.
	Tombstone(ctx context.Context, id, snapshotID string) error

	// QueryTracked returns up to limit live users with id greater than after,
	// ordered by id, projected onto the tracked attributes.
	// Returns domain.ErrNotFound if the collection does not exist.
	QueryTracked(ctx context.Context, after string, limit int) ([]domain.Record, error)

	// Generation identifies the current baseline contents: the snapshot id of the
	// most recent write. Returns empty string for an empty store.
	Generation(ctx context.Context) (string, error)
}

// ChangeLogStore persists change events keyed by snapshot id.
type ChangeLogStore interface {
	// AppendChanges writes a batch of events atomically.
	AppendChanges(ctx context.Context, snapshotID string, events []domain.ChangeEvent) error

	// ListChanges returns the events of a snapshot in write order.
	ListChanges(ctx context.Context, snapshotID string) ([]domain.ChangeEvent, error)
}
