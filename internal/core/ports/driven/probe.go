package driven

import "context"

// Prober checks that a downstream consumer is reachable after a run.
// The outcome is informational and never changes the run state.
type Prober interface {
	Probe(ctx context.Context, endpoint string) error
}
