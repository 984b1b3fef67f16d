package halt

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksiaz/liquidation-trading-sub000/internal/events"
)

func testSupervisor() *Supervisor {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewSupervisor(nil, log)
}

// TestSupervisor_EngageLatches verifies the latch engages and holds
func TestSupervisor_EngageLatches(t *testing.T) {
	s := testSupervisor()
	assert.False(t, s.Halted())

	s.Engage(TriggerExposureCeiling, "ratio 3.2")
	assert.True(t, s.Halted())

	status := s.Status()
	assert.Equal(t, TriggerExposureCeiling, status.Trigger)
	assert.Equal(t, "ratio 3.2", status.Detail)
	assert.False(t, status.Since.IsZero())
}

// TestSupervisor_FirstTriggerWins: re-engaging keeps the original trigger
func TestSupervisor_FirstTriggerWins(t *testing.T) {
	s := testSupervisor()
	s.Engage(TriggerFailedPosition, "first")
	s.Engage(TriggerManual, "second")

	status := s.Status()
	assert.Equal(t, TriggerFailedPosition, status.Trigger)
	assert.Equal(t, "first", status.Detail)
}

// TestSupervisor_ResetIsExplicit: reset clears the latch exactly once
func TestSupervisor_ResetIsExplicit(t *testing.T) {
	s := testSupervisor()
	assert.False(t, s.Reset("api"), "reset without halt is a no-op")

	s.Engage(TriggerManual, "")
	assert.True(t, s.Reset("api"))
	assert.False(t, s.Halted())
	assert.False(t, s.Reset("api"))
}

// TestSupervisor_PublishesEvents checks halt transitions reach the bus
func TestSupervisor_PublishesEvents(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	bus := events.NewBus(log)
	ch, unsubscribe := bus.Subscribe(4)
	defer unsubscribe()

	s := NewSupervisor(bus, log)
	s.Engage(TriggerDataIntegrity, "all feeds stale")
	require.True(t, s.Reset("operator"))

	engaged := <-ch
	assert.Equal(t, events.HaltEngaged, engaged.Type)
	data, ok := engaged.Data.(*events.HaltEngagedData)
	require.True(t, ok)
	assert.Equal(t, string(TriggerDataIntegrity), data.Trigger)

	reset := <-ch
	assert.Equal(t, events.HaltReset, reset.Type)
}
