package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/dirsync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// DatabaseFileName is the database file inside the data directory.
const DatabaseFileName = "dirsync.db"

// generationKey is the meta row holding the snapshot id of the last write.
const generationKey = "generation"

// Store is a SQLite database that serves the user, change log, run and
// scheduler ports through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in dataDir.
// If dataDir is empty, defaults to ~/.dirsync/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".dirsync", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFileName)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// UserStore returns a UserStore backed by this store.
func (s *Store) UserStore() driven.UserStore {
	return &userStore{store: s}
}

// ChangeLogStore returns a ChangeLogStore backed by this store.
func (s *Store) ChangeLogStore() driven.ChangeLogStore {
	return &changeLogStore{store: s}
}

// RunStore returns a RunStore backed by this store.
func (s *Store) RunStore() driven.RunStore {
	return &runStore{store: s}
}

// SchedulerStore returns a SchedulerStore backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate applies every pending up migration, one transaction each.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) apply(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== User Store ====================

type userStore struct {
	store *Store
}

var _ driven.UserStore = (*userStore)(nil)

// Upsert writes the full document and clears any tombstone.
func (u *userStore) Upsert(ctx context.Context, rec domain.Record, snapshotID string) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling user %s: %w", rec.ID, err)
	}

	return u.store.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, record, deleted, snapshot_id, updated_at)
			VALUES (?, ?, 0, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				record = excluded.record,
				deleted = 0,
				snapshot_id = excluded.snapshot_id,
				updated_at = excluded.updated_at
		`, rec.ID, string(doc), snapshotID, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("upserting user %s: %w", rec.ID, err)
		}
		return setGeneration(ctx, tx, snapshotID)
	})
}

// Tombstone marks a live user deleted. Unknown ids are ignored.
func (u *userStore) Tombstone(ctx context.Context, id, snapshotID string) error {
	return u.store.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users SET deleted = 1, snapshot_id = ?, updated_at = ?
			WHERE id = ? AND deleted = 0
		`, snapshotID, formatTime(time.Now()), id)
		if err != nil {
			return fmt.Errorf("tombstoning user %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		return setGeneration(ctx, tx, snapshotID)
	})
}

// QueryTracked returns live users with id > after, ordered by id.
func (u *userStore) QueryTracked(ctx context.Context, after string, limit int) ([]domain.Record, error) {
	rows, err := u.store.db.QueryContext(ctx, `
		SELECT record FROM users
		WHERE deleted = 0 AND id > ?
		ORDER BY id
		LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var out []domain.Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		var rec domain.Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return nil, fmt.Errorf("decoding user: %w", err)
		}
		out = append(out, rec.Tracked())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return out, nil
}

// Generation returns the snapshot id of the most recent write.
func (u *userStore) Generation(ctx context.Context) (string, error) {
	var value string
	err := u.store.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", generationKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading generation: %w", err)
	}
	return value, nil
}

func setGeneration(ctx context.Context, tx *sql.Tx, snapshotID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, generationKey, snapshotID)
	if err != nil {
		return fmt.Errorf("updating generation: %w", err)
	}
	return nil
}

// ==================== Change Log Store ====================

type changeLogStore struct {
	store *Store
}

var _ driven.ChangeLogStore = (*changeLogStore)(nil)

// AppendChanges writes a batch of events atomically. An event for a user the
// snapshot already logged replaces the earlier row in place.
func (c *changeLogStore) AppendChanges(ctx context.Context, snapshotID string, events []domain.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	return c.store.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO changes (snapshot_id, user_id, change_type, changed_at, event)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(snapshot_id, user_id) DO UPDATE SET
				change_type = excluded.change_type,
				changed_at = excluded.changed_at,
				event = excluded.event
		`)
		if err != nil {
			return fmt.Errorf("preparing change insert: %w", err)
		}
		defer stmt.Close()

		for i := range events {
			doc, err := json.Marshal(events[i])
			if err != nil {
				return fmt.Errorf("marshalling change %s: %w", events[i].ID, err)
			}
			if _, err := stmt.ExecContext(ctx, snapshotID, events[i].ID, string(events[i].ChangeType),
				formatTime(events[i].ChangeTimestamp), string(doc)); err != nil {
				return fmt.Errorf("inserting change %s: %w", events[i].ID, err)
			}
		}
		return nil
	})
}

// ListChanges returns the events of one snapshot in write order.
func (c *changeLogStore) ListChanges(ctx context.Context, snapshotID string) ([]domain.ChangeEvent, error) {
	rows, err := c.store.db.QueryContext(ctx,
		"SELECT event FROM changes WHERE snapshot_id = ? ORDER BY seq", snapshotID)
	if err != nil {
		return nil, fmt.Errorf("querying changes: %w", err)
	}
	defer rows.Close()

	var events []domain.ChangeEvent //nolint:prealloc // size unknown from query
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning change: %w", err)
		}
		var ev domain.ChangeEvent
		if err := json.Unmarshal([]byte(doc), &ev); err != nil {
			return nil, fmt.Errorf("decoding change: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating changes: %w", err)
	}
	return events, nil
}

// ==================== Run Store ====================

type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

const runColumns = `id, snapshot_id, state, collection_complete, collected, skipped,
	delta_mode, error, attempt, started_at, updated_at`

// SaveRun creates or replaces a run.
func (r *runStore) SaveRun(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidInput
	}
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			state = excluded.state,
			collection_complete = excluded.collection_complete,
			collected = excluded.collected,
			skipped = excluded.skipped,
			delta_mode = excluded.delta_mode,
			error = excluded.error,
			attempt = excluded.attempt,
			started_at = excluded.started_at,
			updated_at = excluded.updated_at
	`, run.ID, run.SnapshotID, string(run.State), boolToInt(run.CollectionComplete),
		run.Collected, run.Skipped, boolToInt(run.DeltaMode), nullString(run.Error),
		run.Attempt, formatTime(run.StartedAt), formatTime(run.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// GetRun returns a run by id.
func (r *runStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := r.store.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first.
func (r *runStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.store.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// SaveSummary creates or replaces the summary of a run.
func (r *runStore) SaveSummary(ctx context.Context, summary *domain.RunSummary) error {
	if summary == nil || summary.RunID == "" {
		return domain.ErrInvalidInput
	}
	doc, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshalling summary: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO run_summaries (run_id, completed_at, summary) VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			completed_at = excluded.completed_at,
			summary = excluded.summary
	`, summary.RunID, formatTime(summary.CompletedAt), string(doc))
	if err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	return nil
}

// GetSummary returns the summary of a run.
func (r *runStore) GetSummary(ctx context.Context, runID string) (*domain.RunSummary, error) {
	return r.summary(ctx, "SELECT summary FROM run_summaries WHERE run_id = ?", runID)
}

// LatestSummary returns the summary with the latest completion time.
func (r *runStore) LatestSummary(ctx context.Context) (*domain.RunSummary, error) {
	return r.summary(ctx, "SELECT summary FROM run_summaries ORDER BY completed_at DESC LIMIT 1")
}

func (r *runStore) summary(ctx context.Context, query string, args ...any) (*domain.RunSummary, error) {
	var doc string
	err := r.store.db.QueryRowContext(ctx, query, args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}
	var summary domain.RunSummary
	if err := json.Unmarshal([]byte(doc), &summary); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	return &summary, nil
}

// ==================== Helper Functions ====================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var state, startedAt, updatedAt string
	var complete, delta int
	var errMsg sql.NullString

	if err := row.Scan(&run.ID, &run.SnapshotID, &state, &complete, &run.Collected, &run.Skipped,
		&delta, &errMsg, &run.Attempt, &startedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	run.State = domain.RunState(state)
	run.CollectionComplete = complete == 1
	run.DeltaMode = delta == 1
	run.Error = errMsg.String
	run.StartedAt = parseTime(startedAt)
	run.UpdatedAt = parseTime(updatedAt)
	return &run, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// timeLayout sorts lexically in UTC, which ORDER BY relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
