// Package domain defines the core business entities for dirsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Record: A directory user as landed from a source
//   - ChangeEvent: One new, modified or deleted transition in a run
//   - BaselineResult: The typed outcome of reading the previous state
//   - Run / RunSummary: Run state machine and its truthful outcome
//   - Settings: The recognised configuration surface
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
