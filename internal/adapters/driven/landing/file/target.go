package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure Target implements the interface.
var _ driven.AppendTarget = (*Target)(nil)

// Extension is the file suffix of landing snapshots.
const Extension = ".ndjson"

// Target is a directory of landing snapshots.
type Target struct {
	dir string
	mu  sync.Mutex
}

// NewTarget creates the landing directory if needed.
func NewTarget(dir string) (*Target, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: landing directory is required", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create landing directory: %w", err)
	}
	return &Target{dir: dir}, nil
}

// Dir returns the landing directory.
func (t *Target) Dir() string {
	return t.dir
}

// Path returns the file path of a snapshot.
func (t *Target) Path(snapshotID string) (string, error) {
	if snapshotID == "" || strings.ContainsAny(snapshotID, `/\`) || snapshotID == "." || snapshotID == ".." {
		return "", fmt.Errorf("%w: snapshot id %q", domain.ErrInvalidInput, snapshotID)
	}
	return filepath.Join(t.dir, snapshotID+Extension), nil
}

// CreateIfAbsent creates an empty snapshot file. An existing file is left untouched.
func (t *Target) CreateIfAbsent(_ context.Context, snapshotID string) error {
	path, err := t.Path(snapshotID)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	return f.Close()
}

// Append writes data to the end of a snapshot and syncs it.
func (t *Target) Append(ctx context.Context, snapshotID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := t.Path(snapshotID)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: snapshot %s", domain.ErrNotFound, snapshotID)
		}
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}
	size := info.Size()

	if _, err := f.Write(data); err != nil {
		return t.rollback(f, size, fmt.Errorf("append snapshot: %w", err))
	}
	if err := f.Sync(); err != nil {
		return t.rollback(f, size, fmt.Errorf("sync snapshot: %w", err))
	}
	return nil
}

// rollback truncates a snapshot to its size before a failed append.
func (t *Target) rollback(f *os.File, size int64, cause error) error {
	if err := f.Truncate(size); err != nil {
		logger.Error(err, "failed to truncate snapshot %s after failed append", f.Name())
		return errors.Join(cause, err)
	}
	return cause
}

// Open returns a reader over a snapshot.
func (t *Target) Open(_ context.Context, snapshotID string) (io.ReadCloser, error) {
	path, err := t.Path(snapshotID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) //nolint:gosec // path is built from a validated snapshot id
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: snapshot %s", domain.ErrNotFound, snapshotID)
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return f, nil
}

// List returns the snapshot ids present in the directory.
func (t *Target) List() ([]string, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, fmt.Errorf("read landing directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), Extension))
	}
	return ids, nil
}
