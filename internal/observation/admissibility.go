// Package observation defines the engine-side contract with the external
// observation layer. The layer itself lives outside the core; this package
// only enforces the admissibility contract on what crosses the boundary:
// numeric primitives are accepted, interpreted labels are not, and stale
// data is a data integrity failure.
package observation

import (
	"errors"
	"fmt"
	"time"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

var (
	// ErrInadmissibleSnapshot marks a snapshot violating the admissibility
	// contract (interpreted labels, non-positive prices).
	ErrInadmissibleSnapshot = errors.New("inadmissible primitive snapshot")

	// ErrStaleSnapshot marks a snapshot older than the staleness horizon.
	ErrStaleSnapshot = errors.New("stale primitive snapshot")
)

// DefaultStaleness is the horizon after which a snapshot no longer counts
// as current market state
const DefaultStaleness = 5 * time.Second

// Validator checks primitive snapshots against the admissibility contract
type Validator struct {
	staleness time.Duration
}

// NewValidator creates a snapshot validator. A non-positive staleness falls
// back to the default horizon.
func NewValidator(staleness time.Duration) *Validator {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Validator{staleness: staleness}
}

// Validate returns nil only for an admissible, current snapshot. On any
// error the engine restricts the symbol to BLOCK/HOLD for the cycle: missing
// or suspect data must never admit a risk-increasing action.
func (v *Validator) Validate(snapshot *domain.PrimitiveSnapshot, now time.Time) error {
	if snapshot == nil {
		return fmt.Errorf("%w: missing snapshot", ErrStaleSnapshot)
	}
	if len(snapshot.Annotations) > 0 {
		// Labels are the narrative layer leaking through the boundary.
		return fmt.Errorf("%w: %d interpreted annotations present", ErrInadmissibleSnapshot, len(snapshot.Annotations))
	}
	if snapshot.MarkPrice <= 0 {
		return fmt.Errorf("%w: non-positive mark price %f", ErrInadmissibleSnapshot, snapshot.MarkPrice)
	}
	if snapshot.TradeCount < 0 || snapshot.Volume < 0 || snapshot.TradeRate < 0 {
		return fmt.Errorf("%w: negative primitive", ErrInadmissibleSnapshot)
	}
	if snapshot.TakenAt.IsZero() || now.Sub(snapshot.TakenAt) > v.staleness {
		return fmt.Errorf("%w: taken at %s", ErrStaleSnapshot, snapshot.TakenAt)
	}
	return nil
}
