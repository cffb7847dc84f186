package domain

import "time"

// RunState is a step of the run state machine.
type RunState string

const (
	// RunPending is a triggered run that has not started collecting.
	RunPending RunState = "pending"
	// RunCollecting pulls pages from the source into the landing snapshot.
	RunCollecting RunState = "collecting"
	// RunReconciling diffs the snapshot against the baseline.
	RunReconciling RunState = "reconciling"
	// RunPersisting writes documents, change log and summary.
	RunPersisting RunState = "persisting"
	// RunCompleted finished with every write achieved.
	RunCompleted RunState = "completed"
	// RunPartiallyFailed failed after collection; the snapshot is valid and resumable.
	RunPartiallyFailed RunState = "partially_failed"
	// RunFailed failed during collection; nothing to reconcile.
	RunFailed RunState = "failed"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunPartiallyFailed || s == RunFailed
}

// Run is the persisted state of one run, used for status and resume.
type Run struct {
	// ID is the run identifier returned by a trigger.
	ID string

	// SnapshotID names the landing snapshot.
	SnapshotID string

	// State is the current state machine step.
	State RunState

	// CollectionComplete is true once every page was landed and flushed.
	CollectionComplete bool

	// Collected is the number of records landed.
	Collected int

	// Skipped is the number of source items rejected at ingestion.
	Skipped int

	// DeltaMode records the mode the run was started with.
	DeltaMode bool

	// Error is the last failure message.
	Error string

	// Attempt counts reconcile/persist attempts, starting at 1.
	Attempt int

	StartedAt time.Time
	UpdatedAt time.Time
}

// RunSummary is the truthful record of what a run achieved.
type RunSummary struct {
	RunID      string `json:"runId"`
	SnapshotID string `json:"snapshotId"`

	// BaselineGeneration identifies the baseline the diff was taken against.
	BaselineGeneration string `json:"baselineGeneration"`

	TotalUsers     int `json:"totalUsers"`
	NewUsers       int `json:"newUsers"`
	ModifiedUsers  int `json:"modifiedUsers"`
	DeletedUsers   int `json:"deletedUsers"`
	UnchangedUsers int `json:"unchangedUsers"`

	// SkippedItems counts source items rejected at ingestion.
	SkippedItems int `json:"skippedItems"`

	// WriteCount is the number of documents actually upserted.
	WriteCount int `json:"writeCount"`

	// WriteFailures is the number of document writes that failed.
	WriteFailures int `json:"writeFailures"`

	// TombstoneCount is the number of deleted users marked in the document store.
	TombstoneCount int `json:"tombstoneCount"`

	// ChangeLogCount is the number of change events actually written.
	ChangeLogCount int `json:"changeLogCount"`

	// ChangeLogFailures is the number of change events that could not be written.
	ChangeLogFailures int `json:"changeLogFailures"`

	// DeltaMode is false when the run forced a full rewrite.
	DeltaMode bool `json:"deltaMode"`

	// CollectionComplete is false when collection was truncated (totalUsers undercounts).
	CollectionComplete bool `json:"collectionComplete"`

	State RunState `json:"state"`
	Error string   `json:"error,omitempty"`

	// ProbeStatus is informational and never affects State.
	ProbeStatus string `json:"probeStatus,omitempty"`

	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Probe outcomes recorded in RunSummary.ProbeStatus.
const (
	ProbeSkipped = "skipped"
	ProbeOK      = "ok"
	ProbeFailed  = "failed"
)
