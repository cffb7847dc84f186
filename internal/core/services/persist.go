package services

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

const defaultChunkSize = 100

// Persistor writes reconciliation output to the document store, the change log
// and the run summary store. The three targets are independent.
type Persistor struct {
	users     driven.UserStore
	changes   driven.ChangeLogStore
	runs      driven.RunStore
	chunkSize int
}

// PersistResult counts what was actually written.
type PersistResult struct {
	WriteCount        int
	WriteFailures     int
	TombstoneCount    int
	TombstoneFailures int
	ChangeLogCount    int
	ChangeLogFailures int

	// Err joins every individual write failure. Nil when everything was written.
	Err error
}

// NewPersistor creates a persistor. chunkSize groups writes for progress reporting.
func NewPersistor(users driven.UserStore, changes driven.ChangeLogStore, runs driven.RunStore, chunkSize int) *Persistor {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Persistor{users: users, changes: changes, runs: runs, chunkSize: chunkSize}
}

// Persist writes documents and change events. A failure on one target never
// blocks or rolls back the other, and one failed document never stops its siblings.
func (p *Persistor) Persist(ctx context.Context, snapshotID string, result ReconcileResult) PersistResult {
	var (
		out  PersistResult
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	// Deliberately not errgroup.WithContext: one target failing must not cancel the other.
	var g errgroup.Group

	g.Go(func() error {
		out.WriteCount, out.WriteFailures = p.writeDocuments(ctx, snapshotID, result.Writes, record)
		out.TombstoneCount, out.TombstoneFailures = p.writeTombstones(ctx, snapshotID, result.Deleted, record)
		return nil
	})

	g.Go(func() error {
		out.ChangeLogCount, out.ChangeLogFailures = p.writeChangeLog(ctx, snapshotID, result.Events, record)
		return nil
	})

	_ = g.Wait()

	out.Err = errors.Join(errs...)
	return out
}

// WriteSummary stores the run summary. It is called last and unconditionally.
func (p *Persistor) WriteSummary(ctx context.Context, summary *domain.RunSummary) error {
	if err := p.runs.SaveSummary(ctx, summary); err != nil {
		return &domain.PersistError{Target: "summary", Key: summary.RunID, Err: err}
	}
	return nil
}

func (p *Persistor) writeDocuments(
	ctx context.Context,
	snapshotID string,
	writes []domain.Record,
	record func(error),
) (written, failed int) {
	for start := 0; start < len(writes); start += p.chunkSize {
		end := min(start+p.chunkSize, len(writes))

		if err := ctx.Err(); err != nil {
			failed += len(writes) - start
			record(&domain.PersistError{Target: "users", Key: writes[start].ID, Err: err})
			break
		}

		for _, rec := range writes[start:end] {
			if err := p.users.Upsert(ctx, rec, snapshotID); err != nil {
				failed++
				record(&domain.PersistError{Target: "users", Key: rec.ID, Err: err})
				continue
			}
			written++
		}

		logger.Debug("persisted users %d/%d (%d failed)", end, len(writes), failed)
	}
	return written, failed
}

func (p *Persistor) writeTombstones(
	ctx context.Context,
	snapshotID string,
	deleted []domain.Record,
	record func(error),
) (written, failed int) {
	for i, rec := range deleted {
		if err := ctx.Err(); err != nil {
			failed += len(deleted) - i
			record(&domain.PersistError{Target: "users", Key: rec.ID, Err: err})
			break
		}
		if err := p.users.Tombstone(ctx, rec.ID, snapshotID); err != nil {
			failed++
			record(&domain.PersistError{Target: "users", Key: rec.ID, Err: err})
			continue
		}
		written++
	}
	return written, failed
}

func (p *Persistor) writeChangeLog(
	ctx context.Context,
	snapshotID string,
	events []domain.ChangeEvent,
	record func(error),
) (written, failed int) {
	for start := 0; start < len(events); start += p.chunkSize {
		end := min(start+p.chunkSize, len(events))
		chunk := events[start:end]

		if err := ctx.Err(); err != nil {
			failed += len(events) - start
			record(&domain.PersistError{Target: "changelog", Key: snapshotID, Err: err})
			break
		}

		if err := p.changes.AppendChanges(ctx, snapshotID, chunk); err != nil {
			failed += len(chunk)
			record(&domain.PersistError{Target: "changelog", Key: snapshotID, Err: err})
			continue
		}
		written += len(chunk)
	}
	return written, failed
}
