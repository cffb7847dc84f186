// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - PageSource: Fetches one page of directory users from a source
//   - SourceFactory: Opens a fresh paged Listing per run
//   - TokenProvider: Issues a bearer token per resource
//   - AppendTarget: Durable, all-or-nothing append for landing snapshots
//   - UserStore: Document store keyed by user id, with the baseline projection query
//   - ChangeLogStore: Change events keyed by snapshot id
//   - RunStore: Run state and run summaries
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Prober: Post-run downstream connectivity check. Without it, probing is skipped.
//   - SchedulerStore: Scheduler state. Without it, task history is not recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
