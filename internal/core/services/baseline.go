package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

const defaultBaselinePageSize = 1000

// BaselineReader loads the previously persisted state for comparison.
type BaselineReader struct {
	store    driven.UserStore
	pageSize int
}

// NewBaselineReader creates a reader that pages through the store pageSize rows at a time.
func NewBaselineReader(store driven.UserStore, pageSize int) *BaselineReader {
	if pageSize <= 0 {
		pageSize = defaultBaselinePageSize
	}
	return &BaselineReader{store: store, pageSize: pageSize}
}

// maxBaselineScans bounds how often Read rescans when the store changes under it.
const maxBaselineScans = 3

// Read loads the tracked projection in one consistent paged scan.
//
// A store with no users, or no collection at all, yields BaselineEmpty.
// Every other failure yields BaselineFailed with an error wrapping
// domain.ErrBaselineReadFailed. The two are never conflated.
//
// The generation is read before and after the scan. If it moved, the scan
// mixed two states of the store and is repeated.
func (r *BaselineReader) Read(ctx context.Context) domain.BaselineResult {
	for scan := 1; ; scan++ {
		before, err := r.store.Generation(ctx)
		if err != nil {
			return failedBaseline(err)
		}

		records, empty, err := r.scan(ctx)
		if err != nil {
			return failedBaseline(err)
		}
		if empty {
			logger.Debug("baseline collection missing; treating as empty")
			return domain.BaselineResult{Outcome: domain.BaselineEmpty, Records: records}
		}

		after, err := r.store.Generation(ctx)
		if err != nil {
			return failedBaseline(err)
		}
		if before != after {
			if scan < maxBaselineScans {
				logger.Warn("baseline generation moved from %q to %q during scan %d; rescanning", before, after, scan)
				continue
			}
			return failedBaseline(fmt.Errorf("generation moved from %q to %q during %d scans", before, after, scan))
		}

		if len(records) == 0 {
			return domain.BaselineResult{Outcome: domain.BaselineEmpty, Records: records}
		}
		logger.Debug("baseline loaded: %d users, generation %s", len(records), after)
		return domain.BaselineResult{
			Outcome:    domain.BaselineLoaded,
			Records:    records,
			Generation: after,
		}
	}
}

// scan pages through the store. The bool reports a store with no collection.
func (r *BaselineReader) scan(ctx context.Context) (map[string]domain.Record, bool, error) {
	records := make(map[string]domain.Record)
	after := ""

	for {
		page, err := r.store.QueryTracked(ctx, after, r.pageSize)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrNotFound) && len(records) == 0:
			return records, true, nil
		default:
			return nil, false, err
		}

		for _, rec := range page {
			records[rec.ID] = rec
		}
		if len(page) < r.pageSize {
			return records, false, nil
		}
		after = page[len(page)-1].ID
	}
}

func failedBaseline(err error) domain.BaselineResult {
	return domain.BaselineResult{
		Outcome: domain.BaselineFailed,
		Err:     fmt.Errorf("%w: %w", domain.ErrBaselineReadFailed, err),
	}
}
