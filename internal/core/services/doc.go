// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The pipeline is Collector -> LandingWriter -> LoadSnapshot +
// BaselineReader -> Reconcile -> Persistor, driven by RunCoordinator.
// Reconcile is a pure function; everything else reaches the outside
// world only through driven ports.
package services
