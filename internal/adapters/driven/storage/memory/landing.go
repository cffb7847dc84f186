package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure AppendTarget implements the interface.
var _ driven.AppendTarget = (*AppendTarget)(nil)

// AppendTarget keeps landing snapshots in memory.
type AppendTarget struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewAppendTarget creates an empty in-memory landing target.
func NewAppendTarget() *AppendTarget {
	return &AppendTarget{snapshots: make(map[string][]byte)}
}

// CreateIfAbsent creates an empty snapshot unless one exists.
func (t *AppendTarget) CreateIfAbsent(_ context.Context, snapshotID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.snapshots[snapshotID]; !ok {
		t.snapshots[snapshotID] = []byte{}
	}
	return nil
}

// Append adds data to the end of a snapshot.
func (t *AppendTarget) Append(_ context.Context, snapshotID string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.snapshots[snapshotID]; !ok {
		return domain.ErrNotFound
	}
	t.snapshots[snapshotID] = append(t.snapshots[snapshotID], data...)
	return nil
}

// Open returns a reader over a copy of the snapshot.
func (t *AppendTarget) Open(_ context.Context, snapshotID string) (io.ReadCloser, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	data, ok := t.snapshots[snapshotID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}
