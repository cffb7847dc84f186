// Package file stores landing snapshots as append-only NDJSON files.
//
// Each snapshot lives at <dir>/<snapshotID>.ndjson. Appends are synced to disk
// before returning, and a failed append truncates the file back to its size
// before the append so a partial line never survives.
package file
