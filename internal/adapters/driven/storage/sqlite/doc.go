// Package sqlite provides the SQLite-backed document store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. A single database connection serves several ports:
//
//   - UserStore: current user documents, tombstones and the baseline generation
//   - ChangeLogStore: the append-only change log
//   - RunStore: run state and run summaries
//   - SchedulerStore: scheduled task state and history
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.dirsync/data/dirsync.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. SQLite runs in WAL mode.
package sqlite
