package services

import (
	"sort"
	"time"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

// ReconcileOptions controls one reconciliation.
type ReconcileOptions struct {
	// DeltaMode enables deletion detection and restricts writes to changed records.
	// When false every current record is written.
	DeltaMode bool

	// SnapshotID is stamped on every emitted event.
	SnapshotID string

	// Now is the event timestamp. Zero means time.Now().
	Now time.Time
}

// ReconcileResult is the outcome of diffing a snapshot against a baseline.
type ReconcileResult struct {
	// Events holds new and modified events in id order, followed by deleted events in id order.
	Events []domain.ChangeEvent

	// Writes is the set of records the persistor must upsert, in id order.
	Writes []domain.Record

	// Deleted holds the prior records of users absent from the snapshot.
	// Always empty when DeltaMode is false.
	Deleted []domain.Record

	New       int
	Modified  int
	Unchanged int
}

// Reconcile classifies every current record as new, modified or unchanged against
// the baseline and, in delta mode, every baseline record missing from current as deleted.
// It has no side effects.
func Reconcile(current, baseline map[string]domain.Record, opts ReconcileOptions) ReconcileResult {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result := ReconcileResult{}

	for _, id := range sortedIDs(current) {
		rec := current[id]
		prior, seen := baseline[id]

		switch {
		case !seen:
			result.New++
			result.Events = append(result.Events, domain.ChangeEvent{
				ID:              id,
				ChangeType:      domain.ChangeNew,
				SnapshotID:      opts.SnapshotID,
				ChangeTimestamp: now,
				Record:          rec,
			})
			result.Writes = append(result.Writes, rec)

		default:
			changes := diffTracked(&prior, &rec)
			if len(changes) == 0 {
				result.Unchanged++
				if !opts.DeltaMode {
					result.Writes = append(result.Writes, rec)
				}
				continue
			}
			result.Modified++
			result.Events = append(result.Events, domain.ChangeEvent{
				ID:              id,
				ChangeType:      domain.ChangeModified,
				SnapshotID:      opts.SnapshotID,
				ChangeTimestamp: now,
				Changes:         changes,
				Record:          rec,
			})
			result.Writes = append(result.Writes, rec)
		}
	}

	if !opts.DeltaMode {
		return result
	}

	for _, id := range sortedIDs(baseline) {
		if _, ok := current[id]; ok {
			continue
		}
		prior := baseline[id]
		result.Deleted = append(result.Deleted, prior)
		result.Events = append(result.Events, domain.ChangeEvent{
			ID:              id,
			ChangeType:      domain.ChangeDeleted,
			SnapshotID:      opts.SnapshotID,
			ChangeTimestamp: now,
			Record:          prior,
		})
	}

	return result
}

// diffTracked returns the tracked attributes whose values differ.
// Comparison is exact: absent differs from empty string, and case matters.
func diffTracked(prior, current *domain.Record) map[string]domain.FieldDelta {
	var changes map[string]domain.FieldDelta
	for _, field := range domain.TrackedFields {
		oldVal := prior.TrackedValue(field)
		newVal := current.TrackedValue(field)
		if oldVal == newVal {
			continue
		}
		if changes == nil {
			changes = make(map[string]domain.FieldDelta)
		}
		changes[field] = domain.FieldDelta{Old: oldVal, New: newVal}
	}
	return changes
}

func sortedIDs(records map[string]domain.Record) []string {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
