// Package halt implements the emergency kill / halt supremacy channel: a
// latched global override that suppresses all risk-increasing mandates and
// forces terminal behavior on invariant catastrophe. The latch persists
// until an explicit external reset; there is no auto-recovery and there are
// no retries.
package halt

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ksiaz/liquidation-trading-sub000/internal/events"
)

// Trigger identifies what engaged the halt latch
type Trigger string

const (
	TriggerFailedPosition  Trigger = "failed_position"
	TriggerDataIntegrity   Trigger = "data_integrity_loss"
	TriggerExposureCeiling Trigger = "exposure_ceiling_breach"
	TriggerManual          Trigger = "manual"
)

// Status is a snapshot of the halt latch
type Status struct {
	Halted  bool      `json:"halted"`
	Trigger Trigger   `json:"trigger,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Since   time.Time `json:"since,omitempty"`
}

// Supervisor owns the halt latch. It is checked at the start of every cycle
// for every symbol; while halted, only best-effort EXIT is attempted.
type Supervisor struct {
	mu     sync.RWMutex
	status Status
	bus    *events.Bus
	log    zerolog.Logger
}

// NewSupervisor creates a halt supervisor. The bus may be nil in tests.
func NewSupervisor(bus *events.Bus, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		bus: bus,
		log: log.With().Str("component", "halt_supervisor").Logger(),
	}
}

// Halted reports whether the latch is engaged
func (s *Supervisor) Halted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Halted
}

// Status returns a snapshot of the latch
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Engage latches halt mode. Re-engaging while already halted keeps the
// original trigger: the first catastrophe is the one that matters for the
// post-mortem.
func (s *Supervisor) Engage(trigger Trigger, detail string) {
	s.mu.Lock()
	if s.status.Halted {
		s.mu.Unlock()
		return
	}
	s.status = Status{
		Halted:  true,
		Trigger: trigger,
		Detail:  detail,
		Since:   time.Now().UTC(),
	}
	s.mu.Unlock()

	s.log.Error().
		Str("trigger", string(trigger)).
		Str("detail", detail).
		Msg("HALT engaged: suppressing all non-exit mandates")

	if s.bus != nil {
		s.bus.Publish(&events.HaltEngagedData{Trigger: string(trigger), Detail: detail})
	}
}

// Reset clears the latch. This is the only recovery path and it is always
// external and explicit.
func (s *Supervisor) Reset(source string) bool {
	s.mu.Lock()
	if !s.status.Halted {
		s.mu.Unlock()
		return false
	}
	s.status = Status{}
	s.mu.Unlock()

	s.log.Warn().Str("source", source).Msg("Halt latch reset")

	if s.bus != nil {
		s.bus.Publish(&events.HaltResetData{Source: source})
	}
	return true
}
