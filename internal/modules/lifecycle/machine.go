// Package lifecycle implements the position lifecycle state machine: the
// single source of truth for which lifecycle transitions are legal and which
// mandates are admissible in each state.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

var (
	// ErrIllegalTransition marks a transition not present in the legal
	// table. This is a constitutional violation: it is never silently
	// corrected, and the affected position is moved to FAILED.
	ErrIllegalTransition = errors.New("illegal lifecycle transition")

	// ErrUnknownSymbol is returned when a result arrives for a symbol the
	// tracker has never seen in a non-FLAT state.
	ErrUnknownSymbol = errors.New("no tracked position for symbol")
)

// legalTransitions is the closed set of permitted state pairs.
// FLAT→ENTERING→OPEN; OPEN→REDUCING→OPEN; ENTERING|OPEN|REDUCING→CLOSING→
// CLOSED→FLAT; any state except CLOSED→FAILED; FAILED→CLOSING. The
// ENTERING→CLOSING edge is the cancel of a working entry.
var legalTransitions = map[domain.PositionState][]domain.PositionState{
	domain.StateFlat:     {domain.StateEntering, domain.StateFailed},
	domain.StateEntering: {domain.StateOpen, domain.StateClosing, domain.StateFailed},
	domain.StateOpen:     {domain.StateReducing, domain.StateClosing, domain.StateFailed},
	domain.StateReducing: {domain.StateOpen, domain.StateClosing, domain.StateFailed},
	domain.StateClosing:  {domain.StateClosed, domain.StateFailed},
	domain.StateClosed:   {domain.StateFlat},
	domain.StateFailed:   {domain.StateClosing},
}

// admissibleMandates maps each lifecycle state to the mandate types that may
// be selected while the position occupies it.
var admissibleMandates = map[domain.PositionState][]domain.MandateType{
	domain.StateFlat:     {domain.MandateEnter, domain.MandateHold},
	domain.StateEntering: {domain.MandateExit}, // cancel only
	domain.StateOpen:     {domain.MandateAdd, domain.MandateReduce, domain.MandateExit, domain.MandateHold, domain.MandateBlock},
	domain.StateReducing: {domain.MandateReduce, domain.MandateExit},
	domain.StateClosing:  {}, // terminal execution only
	domain.StateFailed:   {domain.MandateExit},
}

// CanTransition reports whether from→to is in the legal transition table
func CanTransition(from, to domain.PositionState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Admissible reports whether a mandate type may be selected while the
// position occupies the given state
func Admissible(state domain.PositionState, mandate domain.MandateType) bool {
	for _, t := range admissibleMandates[state] {
		if t == mandate {
			return true
		}
	}
	return false
}

// Transition validates and returns the new state, or ErrIllegalTransition.
// Callers must move the position to FAILED on error; the machine itself
// never mutates anything.
func Transition(from, to domain.PositionState) (domain.PositionState, error) {
	if !from.Valid() || !to.Valid() {
		return from, fmt.Errorf("%w: %s -> %s (unknown state)", ErrIllegalTransition, from, to)
	}
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return to, nil
}

// NextState maps a confirmed execution result onto the lifecycle transition
// it implies for a position in the given state. Transitions occur only on
// confirmed execution results, never on mandate intent or elapsed time.
func NextState(state domain.PositionState, result domain.ExecutionResult) (domain.PositionState, error) {
	switch result.Action {
	case domain.ActionOpen:
		// A position already OPEN is adding to itself: confirmations keep
		// it in place, and a canceled or rejected addition leaves the
		// existing exposure untouched.
		if state == domain.StateOpen {
			switch result.Status {
			case domain.ExecAccepted, domain.ExecFilled,
				domain.ExecCanceled, domain.ExecRejected:
				return domain.StateOpen, nil
			}
		}
		switch result.Status {
		case domain.ExecAccepted:
			return Transition(state, domain.StateEntering)
		case domain.ExecFilled:
			return Transition(state, domain.StateOpen)
		case domain.ExecCanceled, domain.ExecRejected:
			// A failed or canceled entry abandons the position through the
			// FAILED path; with nothing filled, the forced exit that
			// follows closes it at zero size.
			return Transition(state, domain.StateFailed)
		}
	case domain.ActionReduce:
		switch result.Status {
		case domain.ExecAccepted:
			// A second acceptance while still REDUCING is idempotent.
			if state == domain.StateReducing {
				return domain.StateReducing, nil
			}
			return Transition(state, domain.StateReducing)
		case domain.ExecFilled:
			return Transition(state, domain.StateOpen)
		case domain.ExecCanceled, domain.ExecRejected:
			// Reduction failed; position keeps its exposure and returns
			// to OPEN for the next cycle to re-evaluate.
			if state == domain.StateOpen {
				return domain.StateOpen, nil
			}
			return Transition(state, domain.StateOpen)
		}
	case domain.ActionClose:
		switch result.Status {
		case domain.ExecAccepted:
			return Transition(state, domain.StateClosing)
		case domain.ExecFilled:
			return Transition(state, domain.StateClosed)
		case domain.ExecCanceled, domain.ExecRejected:
			return Transition(state, domain.StateFailed)
		}
	}
	return state, fmt.Errorf("%w: unmapped result %s/%s in state %s",
		ErrIllegalTransition, result.Action, result.Status, state)
}
