package domain

// BaselineOutcome distinguishes "nothing to compare against" from "could not check".
type BaselineOutcome int

const (
	// BaselineFailed means the read failed; the run must abort.
	BaselineFailed BaselineOutcome = iota
	// BaselineEmpty means the store holds no baseline yet (first run).
	BaselineEmpty
	// BaselineLoaded means Records holds the previous state.
	BaselineLoaded
)

func (o BaselineOutcome) String() string {
	switch o {
	case BaselineEmpty:
		return "empty"
	case BaselineLoaded:
		return "loaded"
	default:
		return "failed"
	}
}

// BaselineResult is the typed outcome of a baseline read.
// The zero value is a failure, so an unset result can never pass as empty.
type BaselineResult struct {
	Outcome BaselineOutcome

	// Records maps id to the tracked projection of each baseline user.
	Records map[string]Record

	// Generation identifies the baseline contents that were read.
	Generation string

	// Err is set when Outcome is BaselineFailed. It wraps ErrBaselineReadFailed.
	Err error
}
