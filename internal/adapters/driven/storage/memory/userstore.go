package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// Ensure UserStore implements the interface.
var _ driven.UserStore = (*UserStore)(nil)

type userRow struct {
	record     domain.Record
	deleted    bool
	snapshotID string
}

// UserStore is an in-memory implementation of driven.UserStore.
type UserStore struct {
	mu         sync.RWMutex
	users      map[string]userRow
	generation string
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]userRow)}
}

// Upsert stores or replaces a user and clears any tombstone.
func (s *UserStore) Upsert(_ context.Context, rec domain.Record, snapshotID string) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[rec.ID] = userRow{record: rec, snapshotID: snapshotID}
	s.generation = snapshotID
	return nil
}

// Tombstone marks a user deleted. Unknown ids are a no-op.
func (s *UserStore) Tombstone(_ context.Context, id, snapshotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.users[id]
	if !ok {
		return nil
	}
	row.deleted = true
	row.snapshotID = snapshotID
	s.users[id] = row
	s.generation = snapshotID
	return nil
}

// QueryTracked returns live users after the cursor, ordered by id.
func (s *UserStore) QueryTracked(_ context.Context, after string, limit int) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id, row := range s.users {
		if !row.deleted && id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]domain.Record, len(ids))
	for i, id := range ids {
		rec := s.users[id].record
		out[i] = rec.Tracked()
	}
	return out, nil
}

// Generation returns the snapshot id of the most recent write.
func (s *UserStore) Generation(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation, nil
}

// Get returns the full stored record, including tombstoned ones.
func (s *UserStore) Get(_ context.Context, id string) (*domain.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.users[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	rec := row.record
	return &rec, row.deleted, nil
}

// Count returns the number of live users.
func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, row := range s.users {
		if !row.deleted {
			n++
		}
	}
	return n
}
