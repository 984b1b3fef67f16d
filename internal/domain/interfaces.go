package domain

import "context"

// ObservationSource provides per-symbol primitive snapshots for a cycle.
// The implementation lives outside the core; the engine only checks the
// admissibility contract on what it receives.
type ObservationSource interface {
	// Snapshot returns the current primitive snapshot for a symbol.
	// A nil snapshot or an error is treated as a data integrity failure
	// for that symbol this cycle.
	Snapshot(ctx context.Context, symbol string) (*PrimitiveSnapshot, error)
}

// MandateSource proposes mandates for a symbol in a cycle. Typically the
// external strategy/condition layer. The engine treats the returned set as
// untrusted: every mandate is validated and passes the same invariant
// filtering as forced mandates.
type MandateSource interface {
	Propose(ctx context.Context, symbol string, snapshot PrimitiveSnapshot, position Position) []Mandate
}

// BrokerAdapter receives execution intents. Implementations must report
// outcomes through the ExecutionResult channel they were constructed with;
// the engine never assumes an intent succeeded. Adapters report ACCEPTED
// before FILLED so every position passes through its working state.
type BrokerAdapter interface {
	Submit(ctx context.Context, intent ExecutionIntent) error
}
