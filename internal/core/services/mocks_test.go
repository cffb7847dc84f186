package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"google.golang.org/api/iterator"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// --- Append target ---

type mockAppendTarget struct {
	mu          sync.Mutex
	data        map[string]*bytes.Buffer
	failAppends int
	appendCalls int
	createErr   error
}

var _ driven.AppendTarget = (*mockAppendTarget)(nil)

func newMockAppendTarget() *mockAppendTarget {
	return &mockAppendTarget{data: make(map[string]*bytes.Buffer)}
}

func (m *mockAppendTarget) CreateIfAbsent(_ context.Context, snapshotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.data[snapshotID]; !ok {
		m.data[snapshotID] = &bytes.Buffer{}
	}
	return nil
}

func (m *mockAppendTarget) Append(_ context.Context, snapshotID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendCalls++
	if m.failAppends > 0 {
		m.failAppends--
		return errors.New("append target unavailable")
	}
	buf, ok := m.data[snapshotID]
	if !ok {
		return domain.ErrNotFound
	}
	buf.Write(data)
	return nil
}

func (m *mockAppendTarget) Open(_ context.Context, snapshotID string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.data[snapshotID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(buf.Bytes()))), nil
}

func (m *mockAppendTarget) bytes(snapshotID string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if buf, ok := m.data[snapshotID]; ok {
		return bytes.Clone(buf.Bytes())
	}
	return nil
}

func (m *mockAppendTarget) set(snapshotID, contents string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[snapshotID] = bytes.NewBufferString(contents)
}

// --- User store ---

type mockUserStore struct {
	mu            sync.Mutex
	users         map[string]domain.Record
	deleted       map[string]bool
	upserted      []string
	generation    string
	upsertErr     map[string]error
	queryErr      error
	queryErrAfter int
	queryCalls    int
	// moveGeneration changes the generation on this many QueryTracked calls,
	// as a concurrent writer would.
	moveGeneration int
}

var _ driven.UserStore = (*mockUserStore)(nil)

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:   make(map[string]domain.Record),
		deleted: make(map[string]bool),
	}
}

func (m *mockUserStore) Upsert(_ context.Context, rec domain.Record, snapshotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.upsertErr[rec.ID]; err != nil {
		return err
	}
	m.users[rec.ID] = rec
	delete(m.deleted, rec.ID)
	m.upserted = append(m.upserted, rec.ID)
	m.generation = snapshotID
	return nil
}

func (m *mockUserStore) Tombstone(_ context.Context, id, snapshotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted[id] = true
	m.generation = snapshotID
	return nil
}

func (m *mockUserStore) QueryTracked(_ context.Context, after string, limit int) ([]domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if m.queryErr != nil && m.queryCalls > m.queryErrAfter {
		return nil, m.queryErr
	}
	if m.moveGeneration > 0 {
		m.moveGeneration--
		m.generation = fmt.Sprintf("%s+%d", m.generation, m.queryCalls)
	}

	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		if id > after && !m.deleted[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		rec := m.users[id]
		out = append(out, rec.Tracked())
	}
	return out, nil
}

func (m *mockUserStore) Generation(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation, nil
}

// --- Change log store ---

type mockChangeLogStore struct {
	mu        sync.Mutex
	events    map[string][]domain.ChangeEvent
	appendErr error
}

var _ driven.ChangeLogStore = (*mockChangeLogStore)(nil)

func newMockChangeLogStore() *mockChangeLogStore {
	return &mockChangeLogStore{events: make(map[string][]domain.ChangeEvent)}
}

func (m *mockChangeLogStore) AppendChanges(_ context.Context, snapshotID string, events []domain.ChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	logged := m.events[snapshotID]
	for _, ev := range events {
		if i := slices.IndexFunc(logged, func(e domain.ChangeEvent) bool { return e.ID == ev.ID }); i >= 0 {
			logged[i] = ev
			continue
		}
		logged = append(logged, ev)
	}
	m.events[snapshotID] = logged
	return nil
}

func (m *mockChangeLogStore) ListChanges(_ context.Context, snapshotID string) ([]domain.ChangeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChangeEvent(nil), m.events[snapshotID]...), nil
}

// --- Run store ---

type mockRunStore struct {
	mu         sync.Mutex
	runs       map[string]domain.Run
	order      []string
	summaries  map[string]domain.RunSummary
	summaryErr error
}

var _ driven.RunStore = (*mockRunStore)(nil)

func newMockRunStore() *mockRunStore {
	return &mockRunStore{
		runs:      make(map[string]domain.Run),
		summaries: make(map[string]domain.RunSummary),
	}
}

func (m *mockRunStore) SaveRun(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		m.order = append(m.order, run.ID)
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *mockRunStore) GetRun(_ context.Context, id string) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

func (m *mockRunStore) ListRuns(_ context.Context, limit int) ([]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Run
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[m.order[i]])
	}
	return out, nil
}

func (m *mockRunStore) SaveSummary(_ context.Context, summary *domain.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summaryErr != nil {
		return m.summaryErr
	}
	m.summaries[summary.RunID] = *summary
	return nil
}

func (m *mockRunStore) GetSummary(_ context.Context, runID string) (*domain.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *mockRunStore) LatestSummary(_ context.Context) (*domain.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		if s, ok := m.summaries[m.order[i]]; ok {
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockRunStore) summary(runID string) domain.RunSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaries[runID]
}

// --- Source ---

// mockListing serves pages of raw landing-shaped JSON.
type mockListing struct {
	pages   [][]driven.RawItem
	next    int
	errAt   int
	err     error
	block   chan struct{}
	fetched int
}

var _ driven.Listing = (*mockListing)(nil)

func newMockListing(pages ...[]driven.RawItem) *mockListing {
	return &mockListing{pages: pages, errAt: -1}
}

func (m *mockListing) Next(ctx context.Context) (*driven.Page, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.next == m.errAt {
		return nil, m.err
	}
	if m.next >= len(m.pages) {
		return nil, iterator.Done
	}
	page := &driven.Page{Items: m.pages[m.next]}
	m.next++
	m.fetched++
	return page, nil
}

func (m *mockListing) Transform(raw driven.RawItem) (domain.Record, error) {
	return domain.ParseRecord(raw)
}

func (m *mockListing) Pages() int { return m.fetched }

type mockSourceFactory struct {
	mu       sync.Mutex
	listings []*mockListing
	opened   int
	openErr  error
}

var _ driven.SourceFactory = (*mockSourceFactory)(nil)

func (m *mockSourceFactory) Open(_ context.Context, _ domain.Settings) (driven.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	l := m.listings[m.opened]
	m.opened++
	return l, nil
}

func (m *mockSourceFactory) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// --- Prober ---

type mockProber struct {
	err   error
	calls int
}

func (m *mockProber) Probe(_ context.Context, _ string) error {
	m.calls++
	return m.err
}

// rawItems encodes records as page items.
func rawItems(recs ...domain.Record) []driven.RawItem {
	out := make([]driven.RawItem, 0, len(recs))
	for _, r := range recs {
		line, err := r.MarshalLine()
		if err != nil {
			panic(err)
		}
		out = append(out, driven.RawItem(bytes.TrimSpace(line)))
	}
	return out
}

var fixedNow = time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
