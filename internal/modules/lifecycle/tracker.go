package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
	"github.com/rs/zerolog"
)

// PositionStore persists confirmed position transitions. Implemented by the
// portfolio repository; nil disables persistence (used in tests).
type PositionStore interface {
	Save(position domain.Position) error
	Delete(symbol string) error
	All() ([]domain.Position, error)
}

// Tracker holds the current position for every symbol and applies confirmed
// execution results to them. It is the only component that mutates position
// state, and it does so exclusively through the legal transition table.
type Tracker struct {
	mu        sync.RWMutex
	positions map[string]domain.Position
	store     PositionStore
	log       zerolog.Logger
}

// NewTracker creates a position tracker. If store is non-nil, previously
// persisted positions are loaded so restarts recover lifecycle state.
func NewTracker(store PositionStore, log zerolog.Logger) (*Tracker, error) {
	t := &Tracker{
		positions: make(map[string]domain.Position),
		store:     store,
		log:       log.With().Str("component", "lifecycle_tracker").Logger(),
	}

	if store != nil {
		persisted, err := store.All()
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted positions: %w", err)
		}
		for _, p := range persisted {
			if err := p.Validate(); err != nil {
				t.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("Skipping invalid persisted position")
				continue
			}
			t.positions[p.Symbol] = p
		}
		if len(t.positions) > 0 {
			t.log.Info().Int("count", len(t.positions)).Msg("Recovered persisted positions")
		}
	}

	return t, nil
}

// Position returns the current position for a symbol. Unknown symbols are
// FLAT by definition.
func (t *Tracker) Position(symbol string) domain.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if p, ok := t.positions[symbol]; ok {
		return p
	}
	return domain.Position{
		Symbol:    symbol,
		Direction: domain.DirectionNone,
		State:     domain.StateFlat,
	}
}

// Positions returns a snapshot of all tracked non-FLAT positions
func (t *Tracker) Positions() []domain.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	return out
}

// HasFailed reports whether any tracked position is in the FAILED state.
// The halt supervisor polls this at cycle start.
func (t *Tracker) HasFailed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, p := range t.positions {
		if p.State == domain.StateFailed {
			return true
		}
	}
	return false
}

// Apply mutates the tracked position for a confirmed execution result.
// On an illegal transition the position is moved to FAILED and the error is
// returned; the caller must not retry.
func (t *Tracker) Apply(result domain.ExecutionResult) (domain.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[result.Symbol]
	if !ok {
		if result.Action != domain.ActionOpen {
			return domain.Position{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, result.Symbol)
		}
		pos = domain.Position{
			Symbol:    result.Symbol,
			Direction: domain.DirectionNone,
			State:     domain.StateFlat,
		}
	}

	next, err := NextState(pos.State, result)
	if err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			t.failPosition(&pos)
			return pos, err
		}
		return pos, err
	}

	if err := t.mutate(&pos, result); err != nil {
		t.failPosition(&pos)
		return pos, err
	}

	pos.State = next
	t.log.Debug().
		Str("symbol", pos.Symbol).
		Str("state", string(pos.State)).
		Float64("size", pos.Size).
		Msg("Position transitioned")

	// CLOSED is transient: the position is destroyed and the symbol
	// returns to FLAT immediately.
	if pos.State == domain.StateClosed {
		delete(t.positions, pos.Symbol)
		if t.store != nil {
			if err := t.store.Delete(pos.Symbol); err != nil {
				t.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("Failed to delete closed position")
			}
		}
		pos.State = domain.StateFlat
		pos.Size = 0
		pos.Direction = domain.DirectionNone
		return pos, nil
	}

	t.positions[pos.Symbol] = pos
	if t.store != nil {
		if err := t.store.Save(pos); err != nil {
			t.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("Failed to persist position")
		}
	}
	return pos, nil
}

// mutate applies the economic effect of a confirmed result to the position.
// Direction is immutable while non-FLAT; size only grows on entry fills.
func (t *Tracker) mutate(pos *domain.Position, result domain.ExecutionResult) error {
	switch {
	case result.Action == domain.ActionOpen && result.Status == domain.ExecAccepted:
		if !result.Direction.Valid() || result.Direction == domain.DirectionNone {
			return fmt.Errorf("entry without direction for %s", result.Symbol)
		}
		if pos.Direction != domain.DirectionNone && result.Direction != pos.Direction {
			return fmt.Errorf("direction change on open position %s: %s -> %s",
				pos.Symbol, pos.Direction, result.Direction)
		}
		pos.Direction = result.Direction
		if result.StopPrice != 0 {
			pos.StopPrice = result.StopPrice
		}

	case result.Action == domain.ActionOpen && result.Status == domain.ExecFilled:
		if pos.Direction != domain.DirectionNone && result.Direction != pos.Direction {
			return fmt.Errorf("direction change on open position %s: %s -> %s",
				pos.Symbol, pos.Direction, result.Direction)
		}
		if result.FilledQty <= 0 {
			return fmt.Errorf("entry fill with quantity %f for %s",
				result.FilledQty, result.Symbol)
		}
		// An addition blends into the existing basis at the size-weighted
		// average price.
		total := pos.Size + result.FilledQty
		if pos.Size > 0 {
			pos.EntryPrice = (pos.EntryPrice*pos.Size + result.FillPrice*result.FilledQty) / total
		} else {
			pos.EntryPrice = result.FillPrice
		}
		pos.Size = total
		if result.StopPrice != 0 {
			pos.StopPrice = result.StopPrice
		}

	case result.Action == domain.ActionReduce && result.Status == domain.ExecFilled:
		if result.FilledQty <= 0 || result.FilledQty > pos.Size {
			return fmt.Errorf("reduce fill %f out of range for position size %f",
				result.FilledQty, pos.Size)
		}
		pos.Size -= result.FilledQty

	case result.Action == domain.ActionClose && result.Status == domain.ExecFilled:
		pos.Size = 0
		pos.RiskReserved = 0
	}
	return nil
}

// failPosition moves a position to FAILED in place. FAILED admits only a
// forced EXIT; there is no automatic recovery path.
func (t *Tracker) failPosition(pos *domain.Position) {
	if pos.State == domain.StateClosed {
		return
	}
	pos.State = domain.StateFailed
	t.positions[pos.Symbol] = *pos
	if t.store != nil {
		if err := t.store.Save(*pos); err != nil {
			t.log.Error().Err(err).Str("symbol", pos.Symbol).Msg("Failed to persist FAILED position")
		}
	}
	t.log.Error().
		Str("symbol", pos.Symbol).
		Msg("Position moved to FAILED state")
}
