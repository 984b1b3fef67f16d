// Package domain provides the core domain models and types for the
// policy/arbitration engine. The domain layer is pure: no infrastructure
// dependencies, no I/O, no clock access.
package domain

// Direction represents the direction of a position or mandate
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionNone  Direction = "NONE"
)

// Valid reports whether the direction is a known value
func (d Direction) Valid() bool {
	switch d {
	case DirectionLong, DirectionShort, DirectionNone:
		return true
	default:
		return false
	}
}

// PositionState represents the exclusive lifecycle phase a position occupies.
// The set is closed: any state not listed here is unrepresentable.
type PositionState string

const (
	StateFlat     PositionState = "FLAT"
	StateEntering PositionState = "ENTERING"
	StateOpen     PositionState = "OPEN"
	StateReducing PositionState = "REDUCING"
	StateClosing  PositionState = "CLOSING"
	StateClosed   PositionState = "CLOSED"
	StateFailed   PositionState = "FAILED"
)

// Valid reports whether the state is a known lifecycle state
func (s PositionState) Valid() bool {
	switch s {
	case StateFlat, StateEntering, StateOpen, StateReducing, StateClosing, StateClosed, StateFailed:
		return true
	default:
		return false
	}
}

// MandateType represents the action class a mandate proposes
type MandateType string

const (
	MandateEnter  MandateType = "ENTER"
	MandateAdd    MandateType = "ADD"
	MandateReduce MandateType = "REDUCE"
	MandateExit   MandateType = "EXIT"
	MandateBlock  MandateType = "BLOCK"
	MandateHold   MandateType = "HOLD"
)

// Authority returns the fixed global authority rank of a mandate type.
// Higher values dominate: EXIT > REDUCE > BLOCK > HOLD > ADD > ENTER.
// Types are mutually exclusive per tier, so cross-type ties cannot occur.
func (t MandateType) Authority() int {
	switch t {
	case MandateExit:
		return 6
	case MandateReduce:
		return 5
	case MandateBlock:
		return 4
	case MandateHold:
		return 3
	case MandateAdd:
		return 2
	case MandateEnter:
		return 1
	default:
		return 0
	}
}

// RiskIncreasing reports whether the mandate type can increase exposure.
// Risk-increasing mandates are the ones suppressed during Halt and under
// data integrity failures.
func (t MandateType) RiskIncreasing() bool {
	return t == MandateEnter || t == MandateAdd
}

// Executable reports whether the mandate type resolves to an execution
// intent when selected. HOLD and BLOCK shape permissions only.
func (t MandateType) Executable() bool {
	switch t {
	case MandateEnter, MandateAdd, MandateReduce, MandateExit:
		return true
	default:
		return false
	}
}

// Valid reports whether the mandate type is a known value
func (t MandateType) Valid() bool {
	return t.Authority() != 0
}

// IntentAction represents the execution action class of an intent
type IntentAction string

const (
	ActionOpen   IntentAction = "OPEN"
	ActionReduce IntentAction = "REDUCE"
	ActionClose  IntentAction = "CLOSE"
)

// PriceType represents how an execution intent is priced
type PriceType string

const (
	PriceMarket PriceType = "MARKET"
	PriceLimit  PriceType = "LIMIT"
	PriceStop   PriceType = "STOP"
)

// DiscardReason explains why arbitration discarded a mandate.
// Every discarded mandate carries exactly one reason in the audit trail.
type DiscardReason string

const (
	DiscardLowerAuthority       DiscardReason = "lower_authority"
	DiscardStateInadmissible    DiscardReason = "state_inadmissible"
	DiscardInvariantDenied      DiscardReason = "invariant_denied"
	DiscardDirectionalAmbiguity DiscardReason = "directional_ambiguity"
	DiscardHalted               DiscardReason = "halted"
	DiscardDataIntegrity        DiscardReason = "data_integrity"
)

// ExecutionStatus represents a confirmed execution result status from the
// broker adapter. Lifecycle transitions fire only on these, never on
// mandate intent or elapsed time.
type ExecutionStatus string

const (
	ExecAccepted ExecutionStatus = "ACCEPTED"
	ExecFilled   ExecutionStatus = "FILLED"
	ExecCanceled ExecutionStatus = "CANCELED"
	ExecRejected ExecutionStatus = "REJECTED"
)
