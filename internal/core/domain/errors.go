package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source, store or auth type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrMissingID indicates a source item or landing line without an id.
	ErrMissingID = errors.New("record has no id")

	// Source Errors.

	// ErrTransientSource indicates a retryable source failure (5xx, network).
	ErrTransientSource = errors.New("transient source error")

	// ErrRateLimited indicates the source asked the caller to slow down.
	ErrRateLimited = errors.New("rate limited")

	// ErrFatalSource indicates a non-retryable source failure (4xx, auth, malformed query).
	ErrFatalSource = errors.New("fatal source error")

	// Authentication Errors.

	// ErrAuthRequired indicates the source requires authentication but none is configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrTokenAcquisition indicates the credential provider could not issue a token.
	ErrTokenAcquisition = errors.New("token acquisition failed")

	// Pipeline Errors.

	// ErrLandingWrite indicates a landing flush failed after all retries.
	// The buffered records are retained, never dropped.
	ErrLandingWrite = errors.New("landing write failed")

	// ErrBaselineReadFailed indicates the baseline could not be read.
	// This is never treated as an empty baseline.
	ErrBaselineReadFailed = errors.New("baseline read failed")

	// ErrPersistenceWrite indicates one or more writes to a persistent target failed.
	ErrPersistenceWrite = errors.New("persistence write failed")

	// ErrRunTimeout indicates the run deadline expired.
	ErrRunTimeout = errors.New("run timeout exceeded")

	// ErrRunInProgress indicates another run is already executing.
	ErrRunInProgress = errors.New("run in progress")

	// ErrSnapshotIncomplete indicates a run cannot resume because collection never finished.
	ErrSnapshotIncomplete = errors.New("landing snapshot incomplete")

	// ErrRunNotResumable indicates the run is not in a state that can be resumed.
	ErrRunNotResumable = errors.New("run not resumable")
)

// SourceError is a classified failure from a source endpoint.
type SourceError struct {
	// StatusCode is the HTTP status, 0 for transport errors.
	StatusCode int

	// RetryAfter is the server-requested wait for rate-limited responses.
	RetryAfter time.Duration

	// Message is the provider's error message.
	Message string

	// Kind is one of ErrTransientSource, ErrRateLimited, ErrFatalSource.
	Kind error

	// Err is the underlying error, if any.
	Err error
}

func (e *SourceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%v: status %d: %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

// Unwrap exposes both the classification and the cause.
func (e *SourceError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NewSourceError classifies an HTTP status code into the source error taxonomy.
// A 503 carrying a Retry-After is the service throttling and counts as rate limited.
func NewSourceError(status int, message string, retryAfter time.Duration) *SourceError {
	kind := ClassifyStatus(status)
	if status == 503 && retryAfter > 0 {
		kind = ErrRateLimited
	}
	return &SourceError{
		StatusCode: status,
		RetryAfter: retryAfter,
		Message:    message,
		Kind:       kind,
	}
}

// ClassifyStatus maps an HTTP status code to a source error kind.
func ClassifyStatus(status int) error {
	switch {
	case status == 429:
		return ErrRateLimited
	case status == 408 || status >= 500:
		return ErrTransientSource
	default:
		return ErrFatalSource
	}
}

// PageError reports a page that could not be fetched after the retry budget was spent.
type PageError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d failed after %d attempts: %v", e.Page, e.Attempts, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// LandingWriteError reports a flush that failed with data still buffered.
type LandingWriteError struct {
	Snapshot  string
	Attempts  int
	Buffered  int
	LastError error
}

func (e *LandingWriteError) Error() string {
	return fmt.Sprintf("landing %s: flush failed after %d attempts with %d records buffered: %v",
		e.Snapshot, e.Attempts, e.Buffered, e.LastError)
}

func (e *LandingWriteError) Unwrap() []error {
	return []error{ErrLandingWrite, e.LastError}
}

// PersistError reports a single failed write to a persistent target.
type PersistError struct {
	Target string
	Key    string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Target, e.Key, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrPersistenceWrite, e.Err}
}
