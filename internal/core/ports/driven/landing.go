package driven

import (
	"context"
	"io"
)

// AppendTarget is durable storage for landing snapshots.
type AppendTarget interface {
	// CreateIfAbsent creates an empty snapshot. It is a no-op if one exists.
	CreateIfAbsent(ctx context.Context, snapshotID string) error

	// Append writes data to the end of the snapshot.
	// It is all-or-nothing: on error the snapshot is unchanged.
	Append(ctx context.Context, snapshotID string, data []byte) error

	// Open returns a reader over the snapshot contents.
	// Returns domain.ErrNotFound if the snapshot does not exist.
	Open(ctx context.Context, snapshotID string) (io.ReadCloser, error)
}
