package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure ChangeLogStore implements the interface.
var _ driven.ChangeLogStore = (*ChangeLogStore)(nil)

// ChangeLogStore is an in-memory implementation of driven.ChangeLogStore.
type ChangeLogStore struct {
	mu      sync.RWMutex
	changes map[string][]domain.ChangeEvent
}

// NewChangeLogStore creates a new in-memory change log.
func NewChangeLogStore() *ChangeLogStore {
	return &ChangeLogStore{changes: make(map[string][]domain.ChangeEvent)}
}

// AppendChanges adds a batch of events for a snapshot. An event for an id the
// snapshot already holds replaces it in place.
func (s *ChangeLogStore) AppendChanges(_ context.Context, snapshotID string, events []domain.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logged := s.changes[snapshotID]
	for _, ev := range events {
		if i := slices.IndexFunc(logged, func(e domain.ChangeEvent) bool { return e.ID == ev.ID }); i >= 0 {
			logged[i] = ev
			continue
		}
		logged = append(logged, ev)
	}
	s.changes[snapshotID] = logged
	return nil
}

// ListChanges returns a copy of the events of a snapshot in write order.
func (s *ChangeLogStore) ListChanges(_ context.Context, snapshotID string) ([]domain.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.changes[snapshotID]), nil
}
