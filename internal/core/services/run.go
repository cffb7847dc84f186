package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure RunCoordinator implements the interface.
var _ driving.RunCoordinator = (*RunCoordinator)(nil)

// summaryWriteTimeout bounds the final summary write, which runs even after the run deadline.
const summaryWriteTimeout = 30 * time.Second

// RunCoordinator drives one run at a time through collect, reconcile and persist.
type RunCoordinator struct {
	sources driven.SourceFactory
	landing driven.AppendTarget
	users   driven.UserStore
	changes driven.ChangeLogStore
	runs    driven.RunStore
	prober  driven.Prober

	now   func() time.Time
	newID func() string

	// Settings and status tracking
	mu       sync.RWMutex
	settings domain.Settings
	active   *domain.Run
	wg       sync.WaitGroup
}

// NewRunCoordinator creates a new run coordinator.
// prober is optional - if nil, the post-run probe is skipped.
func NewRunCoordinator(
	settings domain.Settings,
	sources driven.SourceFactory,
	landing driven.AppendTarget,
	users driven.UserStore,
	changes driven.ChangeLogStore,
	runs driven.RunStore,
	prober driven.Prober,
) *RunCoordinator {
	return &RunCoordinator{
		settings: settings,
		sources:  sources,
		landing:  landing,
		users:    users,
		changes:  changes,
		runs:     runs,
		prober:   prober,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// UpdateSettings replaces the settings used by subsequent runs.
// A run already in progress keeps the settings it started with.
func (c *RunCoordinator) UpdateSettings(settings domain.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = settings
}

// Run executes a run synchronously.
func (c *RunCoordinator) Run(ctx context.Context) (*domain.RunSummary, error) {
	run, settings, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer c.finish()

	return c.execute(ctx, run, settings)
}

// Trigger starts a run in the background and returns its ID immediately.
func (c *RunCoordinator) Trigger(ctx context.Context) (string, error) {
	run, settings, err := c.begin(ctx)
	if err != nil {
		return "", err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.finish()

		if _, err := c.execute(context.WithoutCancel(ctx), run, settings); err != nil {
			logger.Error(err, "run %s ended in state %s", run.ID, run.State)
		}
	}()

	return run.ID, nil
}

// Wait blocks until every triggered run has finished.
func (c *RunCoordinator) Wait() {
	c.wg.Wait()
}

// Resume re-runs reconcile and persist from the run's existing landing snapshot.
func (c *RunCoordinator) Resume(ctx context.Context, runID string) (*domain.RunSummary, error) {
	run, err := c.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if !run.CollectionComplete {
		return nil, fmt.Errorf("%w: run %s", domain.ErrSnapshotIncomplete, runID)
	}
	switch run.State {
	case domain.RunPartiallyFailed, domain.RunReconciling, domain.RunPersisting:
	default:
		return nil, fmt.Errorf("%w: run %s is %s", domain.ErrRunNotResumable, runID, run.State)
	}

	run.Attempt++
	run.Error = ""

	settings, err := c.acquire(run, false)
	if err != nil {
		return nil, err
	}
	defer c.finish()

	ctx, cancel := context.WithTimeout(ctx, settings.RunTimeout)
	defer cancel()

	log := logger.With("run_id", run.ID)
	log.Info().Str("snapshot_id", run.SnapshotID).Int("attempt", run.Attempt).Msg("resuming run from landing snapshot")

	return c.reconcileAndPersist(ctx, run, settings)
}

// Status returns the status of a run. An empty runID means the most recent run.
func (c *RunCoordinator) Status(ctx context.Context, runID string) (*driving.RunStatus, error) {
	c.mu.RLock()
	if c.active != nil && (runID == "" || c.active.ID == runID) {
		status := &driving.RunStatus{Run: *c.active, Running: true}
		c.mu.RUnlock()
		return status, nil
	}
	c.mu.RUnlock()

	var run *domain.Run
	if runID == "" {
		recent, err := c.runs.ListRuns(ctx, 1)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if len(recent) == 0 {
			return nil, fmt.Errorf("no runs: %w", domain.ErrNotFound)
		}
		run = &recent[0]
	} else {
		got, err := c.runs.GetRun(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("get run: %w", err)
		}
		run = got
	}

	status := &driving.RunStatus{Run: *run}
	if run.State.Terminal() {
		summary, err := c.runs.GetSummary(ctx, run.ID)
		switch {
		case err == nil:
			status.Summary = summary
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("get summary: %w", err)
		}
	}
	return status, nil
}

// begin reserves the single run slot and persists a pending run.
func (c *RunCoordinator) begin(ctx context.Context) (*domain.Run, domain.Settings, error) {
	now := c.now()
	id := c.newID()
	run := &domain.Run{
		ID:         id,
		SnapshotID: fmt.Sprintf("%s-%s", now.Format("20060102T150405Z"), id[:8]),
		State:      domain.RunPending,
		Attempt:    1,
		StartedAt:  now,
		UpdatedAt:  now,
	}

	settings, err := c.acquire(run, true)
	if err != nil {
		return nil, domain.Settings{}, err
	}

	if err := c.runs.SaveRun(ctx, run); err != nil {
		c.finish()
		return nil, domain.Settings{}, fmt.Errorf("save run: %w", err)
	}
	return run, settings, nil
}

// acquire reserves the run slot. A fresh run takes its delta mode from the
// current settings before it becomes visible to Status.
func (c *RunCoordinator) acquire(run *domain.Run, fresh bool) (domain.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return domain.Settings{}, fmt.Errorf("%w: run %s", domain.ErrRunInProgress, c.active.ID)
	}
	if fresh {
		run.DeltaMode = c.settings.DeltaMode
	}
	c.active = run
	return c.settings, nil
}

func (c *RunCoordinator) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nil
}

// setState moves the run to a new state and persists it.
func (c *RunCoordinator) setState(ctx context.Context, run *domain.Run, state domain.RunState) {
	c.mu.Lock()
	run.State = state
	run.UpdatedAt = c.now()
	snapshot := *run
	c.mu.Unlock()

	if err := c.runs.SaveRun(ctx, &snapshot); err != nil {
		logger.Warn("run %s: save state %s: %v", run.ID, state, err)
	}
}

// execute runs collection followed by reconcile and persist.
func (c *RunCoordinator) execute(ctx context.Context, run *domain.Run, settings domain.Settings) (*domain.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, settings.RunTimeout)
	defer cancel()

	log := logger.With("run_id", run.ID)
	log.Info().Str("snapshot_id", run.SnapshotID).Bool("delta_mode", run.DeltaMode).Msg("starting run")

	// 1. Collect from the source into the landing snapshot
	c.setState(ctx, run, domain.RunCollecting)
	logger.Section("Collect")

	collected, err := c.collect(ctx, run, settings)
	c.mu.Lock()
	run.Collected = collected.Collected
	run.Skipped = collected.Skipped
	run.CollectionComplete = collected.Complete
	c.mu.Unlock()

	if err != nil {
		// Collection failure aborts the run: there is nothing to reconcile.
		summary := c.newSummary(run)
		summary.TotalUsers = collected.Collected
		return c.fail(ctx, run, summary, domain.RunFailed, err)
	}

	log.Info().Int("collected", collected.Collected).Int("skipped", collected.Skipped).
		Int("pages", collected.Pages).Msg("collection complete")

	// 2. Reconcile and persist from the durable snapshot
	return c.reconcileAndPersist(ctx, run, settings)
}

func (c *RunCoordinator) collect(ctx context.Context, run *domain.Run, settings domain.Settings) (CollectResult, error) {
	listing, err := c.sources.Open(ctx, settings)
	if err != nil {
		return CollectResult{}, fmt.Errorf("open source: %w", timeoutAware(ctx, err))
	}

	writer := NewLandingWriter(c.landing, run.SnapshotID, settings.Landing)
	if err := writer.Open(ctx); err != nil {
		return CollectResult{}, err
	}

	return NewCollector(settings.Pager.Workers).Collect(ctx, listing, writer)
}

// reconcileAndPersist diffs the snapshot against the baseline and writes the result.
// The first attempt saves its diff as the snapshot's plan before writing anything;
// later attempts replay that plan and only write what is still missing.
// Any failure here leaves the snapshot valid and the run resumable.
func (c *RunCoordinator) reconcileAndPersist(
	ctx context.Context,
	run *domain.Run,
	settings domain.Settings,
) (*domain.RunSummary, error) {
	summary := c.newSummary(run)

	// 1. Load the landing snapshot and any plan from an earlier attempt
	c.setState(ctx, run, domain.RunReconciling)
	logger.Section("Reconcile")

	current, err := LoadSnapshot(ctx, c.landing, run.SnapshotID)
	if err != nil {
		return c.fail(ctx, run, summary, domain.RunPartiallyFailed, timeoutAware(ctx, err))
	}
	summary.TotalUsers = len(current)

	plan, err := LoadPlan(ctx, c.landing, run.SnapshotID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return c.fail(ctx, run, summary, domain.RunPartiallyFailed, timeoutAware(ctx, err))
	}

	// 2. Read the baseline; a failed read is never an empty baseline
	baseline := NewBaselineReader(c.users, defaultBaselinePageSize).Read(ctx)
	switch baseline.Outcome {
	case domain.BaselineLoaded, domain.BaselineEmpty:
		logger.Debug("baseline %s with %d users", baseline.Outcome, len(baseline.Records))
	default:
		return c.fail(ctx, run, summary, domain.RunPartiallyFailed, timeoutAware(ctx, baseline.Err))
	}

	// 3. Diff, or work out what the plan still needs
	var (
		work     ReconcileResult
		progress PlanProgress
	)
	if plan == nil {
		work = Reconcile(current, baseline.Records, ReconcileOptions{
			DeltaMode:  run.DeltaMode,
			SnapshotID: run.SnapshotID,
			Now:        c.now(),
		})
		plan = &Plan{BaselineGeneration: baseline.Generation, Events: work.Events}
		if err := SavePlan(ctx, c.landing, run.SnapshotID, plan); err != nil {
			return c.fail(ctx, run, summary, domain.RunPartiallyFailed, timeoutAware(ctx, err))
		}
	} else {
		logged, err := c.loggedIDs(ctx, run.SnapshotID)
		if err != nil {
			return c.fail(ctx, run, summary, domain.RunPartiallyFailed, timeoutAware(ctx, err))
		}
		work, progress = plan.Remaining(current, baseline.Records, logged, run.DeltaMode)
		logger.Info("replaying plan of %s: %d writes, %d tombstones, %d events outstanding",
			run.SnapshotID, len(work.Writes), len(work.Deleted), len(work.Events))
	}
	summary.BaselineGeneration = plan.BaselineGeneration
	summary.NewUsers, summary.ModifiedUsers, summary.DeletedUsers, summary.UnchangedUsers = plan.Counts(len(current))

	// 4. Persist documents and change log
	c.setState(ctx, run, domain.RunPersisting)
	logger.Section("Persist")

	persisted := NewPersistor(c.users, c.changes, c.runs, settings.PersistChunkSize).
		Persist(ctx, run.SnapshotID, work)
	summary.WriteCount = progress.Written + persisted.WriteCount
	summary.WriteFailures = persisted.WriteFailures + persisted.TombstoneFailures
	summary.TombstoneCount = progress.Tombstoned + persisted.TombstoneCount
	summary.ChangeLogCount = progress.Logged + persisted.ChangeLogCount
	summary.ChangeLogFailures = persisted.ChangeLogFailures

	if persisted.Err != nil {
		return c.fail(ctx, run, summary, domain.RunPartiallyFailed, timeoutAware(ctx, persisted.Err))
	}

	// 5. Probe and record the summary
	summary.ProbeStatus = c.probe(ctx, settings)
	return c.complete(ctx, run, summary)
}

// loggedIDs returns the ids that already have an event in the snapshot's change log.
func (c *RunCoordinator) loggedIDs(ctx context.Context, snapshotID string) (map[string]bool, error) {
	events, err := c.changes.ListChanges(ctx, snapshotID)
	if err != nil {
		return nil, &domain.PersistError{Target: "changelog", Key: snapshotID, Err: err}
	}
	logged := make(map[string]bool, len(events))
	for i := range events {
		logged[events[i].ID] = true
	}
	return logged, nil
}

func (c *RunCoordinator) probe(ctx context.Context, settings domain.Settings) string {
	if c.prober == nil || settings.ProbeEndpoint == "" {
		return domain.ProbeSkipped
	}
	if err := c.prober.Probe(ctx, settings.ProbeEndpoint); err != nil {
		logger.Warn("post-run probe of %s failed: %v", settings.ProbeEndpoint, err)
		return domain.ProbeFailed
	}
	return domain.ProbeOK
}

func (c *RunCoordinator) newSummary(run *domain.Run) *domain.RunSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &domain.RunSummary{
		RunID:              run.ID,
		SnapshotID:         run.SnapshotID,
		SkippedItems:       run.Skipped,
		DeltaMode:          run.DeltaMode,
		CollectionComplete: run.CollectionComplete,
		ProbeStatus:        domain.ProbeSkipped,
		StartedAt:          run.StartedAt,
	}
}

func (c *RunCoordinator) complete(ctx context.Context, run *domain.Run, summary *domain.RunSummary) (*domain.RunSummary, error) {
	summary.State = domain.RunCompleted
	if err := c.writeSummary(ctx, summary); err != nil {
		return c.fail(ctx, run, summary, domain.RunPartiallyFailed, err)
	}
	c.setState(context.WithoutCancel(ctx), run, domain.RunCompleted)

	log := logger.With("run_id", run.ID)
	log.Info().Int("total", summary.TotalUsers).Int("new", summary.NewUsers).
		Int("modified", summary.ModifiedUsers).Int("deleted", summary.DeletedUsers).
		Int("unchanged", summary.UnchangedUsers).Int("written", summary.WriteCount).
		Msg("run completed")
	return summary, nil
}

// fail records a terminal failure. The summary is written regardless and
// reflects only what was achieved.
func (c *RunCoordinator) fail(
	ctx context.Context,
	run *domain.Run,
	summary *domain.RunSummary,
	state domain.RunState,
	cause error,
) (*domain.RunSummary, error) {
	summary.State = state
	summary.Error = cause.Error()

	if err := c.writeSummary(ctx, summary); err != nil {
		cause = errors.Join(cause, err)
	}

	c.mu.Lock()
	run.Error = cause.Error()
	c.mu.Unlock()
	c.setState(context.WithoutCancel(ctx), run, state)

	logger.Error(cause, "run %s %s", run.ID, state)
	return summary, cause
}

// writeSummary runs on a detached context so a run that hit its deadline still records its outcome.
func (c *RunCoordinator) writeSummary(ctx context.Context, summary *domain.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryWriteTimeout)
	defer cancel()

	summary.CompletedAt = c.now()
	return NewPersistor(c.users, c.changes, c.runs, 0).WriteSummary(ctx, summary)
}
