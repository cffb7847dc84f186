package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/dirsync/internal/core/domain"
)

type userModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Record     []byte    `gorm:"column:record;type:jsonb;not null"`
	Deleted    bool      `gorm:"column:deleted;not null;default:false;index:idx_users_live,priority:1"`
	SnapshotID string    `gorm:"column:snapshot_id;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string {
	return "users"
}

func userModelFromRecord(rec domain.Record, snapshotID string, now time.Time) (userModel, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return userModel{}, fmt.Errorf("marshal user %s: %w", rec.ID, err)
	}
	return userModel{ID: rec.ID, Record: doc, SnapshotID: snapshotID, UpdatedAt: now.UTC()}, nil
}

func (m userModel) toTracked() (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal(m.Record, &rec); err != nil {
		return domain.Record{}, fmt.Errorf("decode user %s: %w", m.ID, err)
	}
	return rec.Tracked(), nil
}

type changeModel struct {
	Seq        int64     `gorm:"column:seq;primaryKey;autoIncrement"`
	SnapshotID string    `gorm:"column:snapshot_id;not null;index:idx_changes_snapshot;uniqueIndex:idx_changes_snapshot_user,priority:1"`
	UserID     string    `gorm:"column:user_id;not null;uniqueIndex:idx_changes_snapshot_user,priority:2"`
	ChangeType string    `gorm:"column:change_type;not null"`
	ChangedAt  time.Time `gorm:"column:changed_at"`
	Event      []byte    `gorm:"column:event;type:jsonb;not null"`
}

func (changeModel) TableName() string {
	return "changes"
}

func changeModelFromEvent(snapshotID string, ev domain.ChangeEvent) (changeModel, error) {
	doc, err := json.Marshal(ev)
	if err != nil {
		return changeModel{}, fmt.Errorf("marshal change %s: %w", ev.ID, err)
	}
	return changeModel{
		SnapshotID: snapshotID,
		UserID:     ev.ID,
		ChangeType: string(ev.ChangeType),
		ChangedAt:  ev.ChangeTimestamp.UTC(),
		Event:      doc,
	}, nil
}

type runModel struct {
	ID                 string    `gorm:"column:id;primaryKey"`
	SnapshotID         string    `gorm:"column:snapshot_id;not null"`
	State              string    `gorm:"column:state;not null"`
	CollectionComplete bool      `gorm:"column:collection_complete"`
	Collected          int       `gorm:"column:collected"`
	Skipped            int       `gorm:"column:skipped"`
	DeltaMode          bool      `gorm:"column:delta_mode"`
	Error              string    `gorm:"column:error"`
	Attempt            int       `gorm:"column:attempt"`
	StartedAt          time.Time `gorm:"column:started_at;index"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (runModel) TableName() string {
	return "runs"
}

func runModelFromRun(run *domain.Run) runModel {
	return runModel{
		ID:                 run.ID,
		SnapshotID:         run.SnapshotID,
		State:              string(run.State),
		CollectionComplete: run.CollectionComplete,
		Collected:          run.Collected,
		Skipped:            run.Skipped,
		DeltaMode:          run.DeltaMode,
		Error:              run.Error,
		Attempt:            run.Attempt,
		StartedAt:          run.StartedAt.UTC(),
		UpdatedAt:          run.UpdatedAt.UTC(),
	}
}

func (m runModel) toRun() domain.Run {
	return domain.Run{
		ID:                 m.ID,
		SnapshotID:         m.SnapshotID,
		State:              domain.RunState(m.State),
		CollectionComplete: m.CollectionComplete,
		Collected:          m.Collected,
		Skipped:            m.Skipped,
		DeltaMode:          m.DeltaMode,
		Error:              m.Error,
		Attempt:            m.Attempt,
		StartedAt:          m.StartedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

type summaryModel struct {
	RunID       string    `gorm:"column:run_id;primaryKey"`
	CompletedAt time.Time `gorm:"column:completed_at;index"`
	Summary     []byte    `gorm:"column:summary;type:jsonb;not null"`
}

func (summaryModel) TableName() string {
	return "run_summaries"
}

type metaModel struct {
	Key   string `gorm:"column:key;primaryKey"`
	Value string `gorm:"column:value;not null"`
}

func (metaModel) TableName() string {
	return "meta"
}

type taskModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	Name            string     `gorm:"column:name"`
	IntervalSeconds int64      `gorm:"column:interval_seconds"`
	LastRun         *time.Time `gorm:"column:last_run"`
	NextRun         *time.Time `gorm:"column:next_run"`
	LastError       string     `gorm:"column:last_error"`
	LastSuccess     *time.Time `gorm:"column:last_success"`
	Enabled         bool       `gorm:"column:enabled"`
}

func (taskModel) TableName() string {
	return "scheduled_tasks"
}

func taskModelFromTask(task *domain.ScheduledTask) taskModel {
	return taskModel{
		ID:              task.ID,
		Name:            task.Name,
		IntervalSeconds: int64(task.Interval / time.Second),
		LastRun:         optionalTime(task.LastRun),
		NextRun:         optionalTime(task.NextRun),
		LastError:       task.LastError,
		LastSuccess:     optionalTime(task.LastSuccess),
		Enabled:         task.Enabled,
	}
}

func (m taskModel) toTask() domain.ScheduledTask {
	return domain.ScheduledTask{
		ID:          m.ID,
		Name:        m.Name,
		Interval:    time.Duration(m.IntervalSeconds) * time.Second,
		LastRun:     valueTime(m.LastRun),
		NextRun:     valueTime(m.NextRun),
		LastError:   m.LastError,
		LastSuccess: valueTime(m.LastSuccess),
		Enabled:     m.Enabled,
	}
}

type taskResultModel struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TaskID         string    `gorm:"column:task_id;not null;index:idx_task_results_task"`
	RunID          string    `gorm:"column:run_id"`
	StartedAt      time.Time `gorm:"column:started_at"`
	EndedAt        time.Time `gorm:"column:ended_at"`
	Success        bool      `gorm:"column:success"`
	Error          string    `gorm:"column:error"`
	ItemsProcessed int       `gorm:"column:items_processed"`
}

func (taskResultModel) TableName() string {
	return "task_results"
}

func (m taskResultModel) toResult() domain.TaskResult {
	return domain.TaskResult{
		TaskID:         m.TaskID,
		RunID:          m.RunID,
		StartedAt:      m.StartedAt.UTC(),
		EndedAt:        m.EndedAt.UTC(),
		Success:        m.Success,
		Error:          m.Error,
		ItemsProcessed: m.ItemsProcessed,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func valueTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
