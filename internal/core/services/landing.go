package services

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// maxLandingLine bounds a single landing line when reading a snapshot back.
const maxLandingLine = 1 << 20

// LandingWriter streams records into a landing snapshot as NDJSON.
//
// Records are buffered and flushed when either threshold is reached and at
// Close. The buffer is cleared only after the append target confirms a flush.
// A LandingWriter is not safe for concurrent use.
type LandingWriter struct {
	target     driven.AppendTarget
	snapshotID string

	flushBytes   int
	flushRecords int
	attempts     int
	retryDelay   time.Duration
	sleep        func(ctx context.Context, d time.Duration) error

	buf      bytes.Buffer
	pending  int
	written  int
	failures int
}

// NewLandingWriter creates a writer for one snapshot.
func NewLandingWriter(target driven.AppendTarget, snapshotID string, cfg domain.LandingSettings) *LandingWriter {
	attempts := cfg.FlushAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &LandingWriter{
		target:       target,
		snapshotID:   snapshotID,
		flushBytes:   cfg.FlushBytes,
		flushRecords: cfg.FlushRecords,
		attempts:     attempts,
		retryDelay:   100 * time.Millisecond,
		sleep:        sleepContext,
	}
}

// Open creates the snapshot if it does not already exist.
func (w *LandingWriter) Open(ctx context.Context) error {
	if err := w.target.CreateIfAbsent(ctx, w.snapshotID); err != nil {
		return fmt.Errorf("%w: create snapshot %s: %w", domain.ErrLandingWrite, w.snapshotID, err)
	}
	return nil
}

// Write buffers one record and flushes if a threshold is reached.
func (w *LandingWriter) Write(ctx context.Context, rec domain.Record) error {
	line, err := rec.MarshalLine()
	if err != nil {
		return err
	}
	w.buf.Write(line)
	w.pending++

	if (w.flushBytes > 0 && w.buf.Len() >= w.flushBytes) ||
		(w.flushRecords > 0 && w.pending >= w.flushRecords) {
		return w.Flush(ctx)
	}
	return nil
}

// Close flushes whatever is buffered.
func (w *LandingWriter) Close(ctx context.Context) error {
	return w.Flush(ctx)
}

// Flush appends the buffer to the snapshot, retrying failed appends.
// On final failure the buffer is left intact and a *domain.LandingWriteError is returned.
func (w *LandingWriter) Flush(ctx context.Context) error {
	if w.pending == 0 {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if attempt > 1 {
			if err := w.sleep(ctx, w.retryDelay); err != nil {
				lastErr = err
				break
			}
		}

		err := w.target.Append(ctx, w.snapshotID, w.buf.Bytes())
		if err == nil {
			w.written += w.pending
			w.buf.Reset()
			w.pending = 0
			return nil
		}

		lastErr = err
		w.failures++
		logger.Warn("landing flush %d/%d for %s failed: %v", attempt, w.attempts, w.snapshotID, err)

		if ctx.Err() != nil {
			break
		}
	}

	return &domain.LandingWriteError{
		Snapshot:  w.snapshotID,
		Attempts:  w.attempts,
		Buffered:  w.pending,
		LastError: lastErr,
	}
}

// Written returns the number of records confirmed durable.
func (w *LandingWriter) Written() int { return w.written }

// Buffered returns the number of records awaiting a flush.
func (w *LandingWriter) Buffered() int { return w.pending }

// FailedAppends returns the number of append attempts that failed and were retried or reported.
func (w *LandingWriter) FailedAppends() int { return w.failures }

// LoadSnapshot reads a landing snapshot into an id-keyed map.
// A malformed line fails the load with its line number. Later lines win on duplicate ids.
func LoadSnapshot(ctx context.Context, target driven.AppendTarget, snapshotID string) (map[string]domain.Record, error) {
	rc, err := target.Open(ctx, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", snapshotID, err)
	}
	defer rc.Close()

	records := make(map[string]domain.Record)
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLandingLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		rec, err := domain.ParseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s line %d: %w", snapshotID, lineNo, err)
		}
		records[rec.ID] = rec

		if lineNo%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("snapshot %s line %d: %w: %w", snapshotID, lineNo+1, domain.ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("read snapshot %s: %w", snapshotID, err)
	}

	return records, nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
