// Package events provides the typed event model and the in-process pub/sub
// bus. Events are structured facts for the audit stream; the engine never
// emits narrative explanations.
package events

import (
	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

// EventType identifies the kind of an event
type EventType string

const (
	CycleCompleted     EventType = "cycle_completed"
	IntentEmitted      EventType = "intent_emitted"
	PositionChanged    EventType = "position_changed"
	HaltEngaged        EventType = "halt_engaged"
	HaltReset          EventType = "halt_reset"
	ExecutionConfirmed EventType = "execution_confirmed"
)

// EventData is the interface all event payload types implement.
// This keeps payloads type-safe while the bus stays generic.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// CycleCompletedData contains data for CycleCompleted events
type CycleCompletedData struct {
	Cycle     uint64 `json:"cycle"`
	Symbols   int    `json:"symbols"`
	Intents   int    `json:"intents"`
	NoActions int    `json:"no_actions"`
	Halted    bool   `json:"halted"`
}

// EventType returns the event type for CycleCompletedData
func (d *CycleCompletedData) EventType() EventType {
	return CycleCompleted
}

// IntentEmittedData contains data for IntentEmitted events
type IntentEmittedData struct {
	Cycle  uint64                 `json:"cycle"`
	Intent domain.ExecutionIntent `json:"intent"`
}

// EventType returns the event type for IntentEmittedData
func (d *IntentEmittedData) EventType() EventType {
	return IntentEmitted
}

// PositionChangedData contains data for PositionChanged events
type PositionChangedData struct {
	Symbol string               `json:"symbol"`
	State  domain.PositionState `json:"state"`
	Size   float64              `json:"size"`
}

// EventType returns the event type for PositionChangedData
func (d *PositionChangedData) EventType() EventType {
	return PositionChanged
}

// HaltEngagedData contains data for HaltEngaged events
type HaltEngagedData struct {
	Trigger string `json:"trigger"`
	Detail  string `json:"detail,omitempty"`
}

// EventType returns the event type for HaltEngagedData
func (d *HaltEngagedData) EventType() EventType {
	return HaltEngaged
}

// HaltResetData contains data for HaltReset events
type HaltResetData struct {
	Source string `json:"source"`
}

// EventType returns the event type for HaltResetData
func (d *HaltResetData) EventType() EventType {
	return HaltReset
}

// ExecutionConfirmedData contains data for ExecutionConfirmed events
type ExecutionConfirmedData struct {
	Result domain.ExecutionResult `json:"result"`
}

// EventType returns the event type for ExecutionConfirmedData
func (d *ExecutionConfirmedData) EventType() EventType {
	return ExecutionConfirmed
}
