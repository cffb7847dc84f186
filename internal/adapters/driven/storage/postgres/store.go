package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

const (
	generationKey = "generation"
	pingTimeout   = 5 * time.Second
)

// Store wraps a gorm connection and serves the persistence ports.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Connect opens the database, pings it and migrates the schema.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", domain.ErrInvalidInput)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing gorm handle without migrating.
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&userModel{}, &changeModel{}, &runModel{}, &summaryModel{},
		&metaModel{}, &taskModel{}, &taskResultModel{},
	)
	if err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UserStore returns a UserStore backed by this store.
func (s *Store) UserStore() driven.UserStore { return &userStore{s} }

// ChangeLogStore returns a ChangeLogStore backed by this store.
func (s *Store) ChangeLogStore() driven.ChangeLogStore { return &changeLogStore{s} }

// RunStore returns a RunStore backed by this store.
func (s *Store) RunStore() driven.RunStore { return &runStore{s} }

// SchedulerStore returns a SchedulerStore backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore { return &schedulerStore{s} }

// ==================== User Store ====================

type userStore struct{ *Store }

var _ driven.UserStore = (*userStore)(nil)

func (u *userStore) Upsert(ctx context.Context, rec domain.Record, snapshotID string) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	row, err := userModelFromRecord(rec, snapshotID, u.now())
	if err != nil {
		return err
	}
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		create := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"record":      row.Record,
				"deleted":     false,
				"snapshot_id": row.SnapshotID,
				"updated_at":  row.UpdatedAt,
			}),
		}).Create(&row)
		if create.Error != nil {
			return logError("upsert user", create.Error, "user_id", rec.ID)
		}
		return setGeneration(tx, snapshotID)
	})
}

func (u *userStore) Tombstone(ctx context.Context, id, snapshotID string) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userModel{}).
			Where("id = ? AND deleted = ?", id, false).
			Updates(map[string]any{"deleted": true, "snapshot_id": snapshotID, "updated_at": u.now().UTC()})
		if res.Error != nil {
			return logError("tombstone user", res.Error, "user_id", id)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return setGeneration(tx, snapshotID)
	})
}

func (u *userStore) QueryTracked(ctx context.Context, after string, limit int) ([]domain.Record, error) {
	var rows []userModel
	err := u.db.WithContext(ctx).
		Where("deleted = ? AND id > ?", false, after).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		if isUndefinedTable(err) {
			return nil, fmt.Errorf("%w: users table", domain.ErrNotFound)
		}
		return nil, logError("query users", err)
	}

	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toTracked()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (u *userStore) Generation(ctx context.Context) (string, error) {
	var row metaModel
	err := u.db.WithContext(ctx).Where("key = ?", generationKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", logError("read generation", err)
	}
	return row.Value, nil
}

func setGeneration(tx *gorm.DB, snapshotID string) error {
	row := metaModel{Key: generationKey, Value: snapshotID}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&row).Error
	if err != nil {
		return logError("update generation", err)
	}
	return nil
}

// ==================== Change Log Store ====================

type changeLogStore struct{ *Store }

var _ driven.ChangeLogStore = (*changeLogStore)(nil)

// AppendChanges upserts events on (snapshot_id, user_id).
func (c *changeLogStore) AppendChanges(ctx context.Context, snapshotID string, events []domain.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	// A batch may not touch the same key twice under ON CONFLICT; the later event wins.
	rows := make([]changeModel, 0, len(events))
	index := make(map[string]int, len(events))
	for _, ev := range events {
		row, err := changeModelFromEvent(snapshotID, ev)
		if err != nil {
			return err
		}
		if i, ok := index[ev.ID]; ok {
			rows[i] = row
			continue
		}
		index[ev.ID] = len(rows)
		rows = append(rows, row)
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "snapshot_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"change_type", "changed_at", "event"}),
	}).Create(&rows).Error
	if err != nil {
		return logError("append changes", err, "snapshot_id", snapshotID)
	}
	return nil
}

func (c *changeLogStore) ListChanges(ctx context.Context, snapshotID string) ([]domain.ChangeEvent, error) {
	var rows []changeModel
	err := c.db.WithContext(ctx).Where("snapshot_id = ?", snapshotID).Order("seq ASC").Find(&rows).Error
	if err != nil {
		return nil, logError("list changes", err, "snapshot_id", snapshotID)
	}
	events := make([]domain.ChangeEvent, 0, len(rows))
	for _, row := range rows {
		var ev domain.ChangeEvent
		if err := json.Unmarshal(row.Event, &ev); err != nil {
			return nil, fmt.Errorf("decode change %d: %w", row.Seq, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// ==================== Run Store ====================

type runStore struct{ *Store }

var _ driven.RunStore = (*runStore)(nil)

func (r *runStore) SaveRun(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidInput
	}
	row := runModelFromRun(run)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return logError("save run", err, "run_id", run.ID)
	}
	return nil
}

func (r *runStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	var row runModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, logError("get run", err, "run_id", id)
	}
	run := row.toRun()
	return &run, nil
}

func (r *runStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	tx := r.db.WithContext(ctx).Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []runModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, logError("list runs", err)
	}
	runs := make([]domain.Run, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, row.toRun())
	}
	return runs, nil
}

func (r *runStore) SaveSummary(ctx context.Context, summary *domain.RunSummary) error {
	if summary == nil || summary.RunID == "" {
		return domain.ErrInvalidInput
	}
	doc, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	row := summaryModel{RunID: summary.RunID, CompletedAt: summary.CompletedAt.UTC(), Summary: doc}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return logError("save summary", err, "run_id", summary.RunID)
	}
	return nil
}

func (r *runStore) GetSummary(ctx context.Context, runID string) (*domain.RunSummary, error) {
	return r.summary(r.db.WithContext(ctx).Where("run_id = ?", runID))
}

func (r *runStore) LatestSummary(ctx context.Context) (*domain.RunSummary, error) {
	return r.summary(r.db.WithContext(ctx).Order("completed_at DESC"))
}

func (r *runStore) summary(tx *gorm.DB) (*domain.RunSummary, error) {
	var row summaryModel
	err := tx.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, logError("read summary", err)
	}
	var summary domain.RunSummary
	if err := json.Unmarshal(row.Summary, &summary); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", row.RunID, err)
	}
	return &summary, nil
}

// ==================== Scheduler Store ====================

type schedulerStore struct{ *Store }

var _ driven.SchedulerStore = (*schedulerStore)(nil)

func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	var row taskModel
	err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil //nolint:nilnil // absent task is not an error
	}
	if err != nil {
		return nil, logError("get task", err, "task_id", taskID)
	}
	task := row.toTask()
	return &task, nil
}

func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	var rows []taskModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, logError("list tasks", err)
	}
	tasks := make([]domain.ScheduledTask, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toTask())
	}
	return tasks, nil
}

func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil {
		return domain.ErrInvalidInput
	}
	row := taskModelFromTask(task)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return logError("save task", err, "task_id", task.ID)
	}
	return nil
}

func (s *schedulerStore) DeleteTask(ctx context.Context, taskID string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", taskID).Delete(&taskModel{}).Error; err != nil {
		return logError("delete task", err, "task_id", taskID)
	}
	return nil
}

func (s *schedulerStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}
	row := taskResultModel{
		TaskID:         result.TaskID,
		RunID:          result.RunID,
		StartedAt:      result.StartedAt.UTC(),
		EndedAt:        result.EndedAt.UTC(),
		Success:        result.Success,
		Error:          result.Error,
		ItemsProcessed: result.ItemsProcessed,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return logError("record task result", err, "task_id", result.TaskID)
	}
	return nil
}

func (s *schedulerStore) GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	tx := s.db.WithContext(ctx).Where("task_id = ?", taskID).Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []taskResultModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, logError("task history", err, "task_id", taskID)
	}
	results := make([]domain.TaskResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toResult())
	}
	return results, nil
}

func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	err := s.db.WithContext(ctx).Exec(`
		DELETE FROM task_results
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY started_at DESC, id DESC) AS rn
				FROM task_results
			) ranked WHERE rn <= ?
		)
	`, keep).Error
	if err != nil {
		return logError("prune task history", err)
	}
	return nil
}

// ==================== Helpers ====================

// logError records a failed statement and returns it wrapped with the operation.
func logError(op string, err error, kv ...string) error {
	l := logger.Logger()
	event := l.Error().Err(err).Str("op", op)
	for i := 0; i+1 < len(kv); i += 2 {
		event = event.Str(kv[i], kv[i+1])
	}
	event.Msg("postgres statement failed")
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrInvalidInput, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
