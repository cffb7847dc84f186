package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// planSuffix names the landing object holding the reconcile plan of a snapshot.
const planSuffix = ".plan"

// Plan is the first reconciliation of a snapshot, kept beside it in the landing
// target. Resumed attempts replay it instead of diffing against a baseline that
// earlier attempts have already changed.
type Plan struct {
	// BaselineGeneration identifies the baseline the plan was diffed against.
	BaselineGeneration string

	// Events are the change events of the diff, in reconcile order.
	Events []domain.ChangeEvent
}

type planHeader struct {
	BaselineGeneration string `json:"baselineGeneration"`
	Events             int    `json:"events"`
}

// PlanID returns the landing object id of a snapshot's plan.
func PlanID(snapshotID string) string {
	return snapshotID + planSuffix
}

// SavePlan writes the plan in a single append so a failed write leaves no plan behind.
func SavePlan(ctx context.Context, target driven.AppendTarget, snapshotID string, plan *Plan) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(planHeader{BaselineGeneration: plan.BaselineGeneration, Events: len(plan.Events)}); err != nil {
		return err
	}
	for i := range plan.Events {
		if err := enc.Encode(&plan.Events[i]); err != nil {
			return fmt.Errorf("encode event %s: %w", plan.Events[i].ID, err)
		}
	}

	id := PlanID(snapshotID)
	if err := target.CreateIfAbsent(ctx, id); err != nil {
		return fmt.Errorf("%w: create plan %s: %w", domain.ErrLandingWrite, id, err)
	}
	if err := target.Append(ctx, id, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: write plan %s: %w", domain.ErrLandingWrite, id, err)
	}
	return nil
}

// LoadPlan reads a snapshot's plan. A missing or empty plan is domain.ErrNotFound.
func LoadPlan(ctx context.Context, target driven.AppendTarget, snapshotID string) (*Plan, error) {
	id := PlanID(snapshotID)
	rc, err := target.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLandingLine)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read plan %s: %w", id, err)
		}
		return nil, fmt.Errorf("%w: plan %s is empty", domain.ErrNotFound, id)
	}
	var header planHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("plan %s header: %w: %w", id, domain.ErrInvalidInput, err)
	}

	plan := &Plan{
		BaselineGeneration: header.BaselineGeneration,
		Events:             make([]domain.ChangeEvent, 0, header.Events),
	}
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		var ev domain.ChangeEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("plan %s line %d: %w: %w", id, lineNo, domain.ErrInvalidInput, err)
		}
		plan.Events = append(plan.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("plan %s line %d: %w: %w", id, lineNo+1, domain.ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("read plan %s: %w", id, err)
	}
	if len(plan.Events) != header.Events {
		return nil, fmt.Errorf("%w: plan %s has %d of %d events",
			domain.ErrSnapshotIncomplete, id, len(plan.Events), header.Events)
	}
	return plan, nil
}

// Counts returns the classification totals of the plan against a snapshot of total records.
func (p *Plan) Counts(total int) (created, modified, deleted, unchanged int) {
	for i := range p.Events {
		switch p.Events[i].ChangeType {
		case domain.ChangeNew:
			created++
		case domain.ChangeModified:
			modified++
		case domain.ChangeDeleted:
			deleted++
		}
	}
	return created, modified, deleted, total - created - modified
}

// PlanProgress is what earlier attempts already achieved for a plan.
type PlanProgress struct {
	Written    int
	Tombstoned int
	Logged     int
}

// Remaining returns the work a plan still needs, given the current snapshot,
// the live baseline and the ids already in the snapshot's change log.
//
// A planned write is done once the baseline holds its tracked values; a planned
// tombstone is done once the id left the baseline. In full-rewrite mode every
// current record is written again and earlier writes are not counted.
func (p *Plan) Remaining(
	current, baseline map[string]domain.Record,
	logged map[string]bool,
	deltaMode bool,
) (ReconcileResult, PlanProgress) {
	var (
		work     ReconcileResult
		progress PlanProgress
	)
	work.New, work.Modified, _, work.Unchanged = p.Counts(len(current))

	for i := range p.Events {
		ev := p.Events[i]
		if logged[ev.ID] {
			progress.Logged++
		} else {
			work.Events = append(work.Events, ev)
		}

		switch ev.ChangeType {
		case domain.ChangeDeleted:
			if _, live := baseline[ev.ID]; live {
				work.Deleted = append(work.Deleted, ev.Record)
			} else {
				progress.Tombstoned++
			}
		default:
			if !deltaMode {
				continue
			}
			if prior, ok := baseline[ev.ID]; ok && len(diffTracked(&prior, &ev.Record)) == 0 {
				progress.Written++
				continue
			}
			work.Writes = append(work.Writes, ev.Record)
		}
	}

	if !deltaMode {
		for _, id := range sortedIDs(current) {
			work.Writes = append(work.Writes, current[id])
		}
	}
	return work, progress
}
