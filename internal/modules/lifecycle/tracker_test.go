package lifecycle

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

func testTracker(t *testing.T) *Tracker {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	tracker, err := NewTracker(nil, log)
	require.NoError(t, err)
	return tracker
}

func result(symbol string, action domain.IntentAction, status domain.ExecutionStatus) domain.ExecutionResult {
	return domain.ExecutionResult{
		Symbol:     symbol,
		Action:     action,
		Status:     status,
		Direction:  domain.DirectionLong,
		ReportedAt: time.Now().UTC(),
	}
}

// TestTracker_UnknownSymbolIsFlat verifies the FLAT default
func TestTracker_UnknownSymbolIsFlat(t *testing.T) {
	tracker := testTracker(t)

	pos := tracker.Position("ETHUSDT")
	assert.Equal(t, domain.StateFlat, pos.State)
	assert.True(t, pos.Flat())
	assert.Equal(t, domain.DirectionNone, pos.Direction)
}

// TestTracker_EntryLifecycle walks FLAT -> ENTERING -> OPEN
func TestTracker_EntryLifecycle(t *testing.T) {
	tracker := testTracker(t)

	accepted := result("BTCUSDT", domain.ActionOpen, domain.ExecAccepted)
	accepted.StopPrice = 95
	pos, err := tracker.Apply(accepted)
	require.NoError(t, err)
	assert.Equal(t, domain.StateEntering, pos.State)
	assert.Equal(t, domain.DirectionLong, pos.Direction)

	filled := result("BTCUSDT", domain.ActionOpen, domain.ExecFilled)
	filled.FilledQty = 2
	filled.FillPrice = 100
	pos, err = tracker.Apply(filled)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOpen, pos.State)
	assert.Equal(t, 2.0, pos.Size)
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.Equal(t, 95.0, pos.StopPrice)
}

// TestTracker_ReduceAndClose walks the position through a partial reduction
// and a full close back to FLAT
func TestTracker_ReduceAndClose(t *testing.T) {
	tracker := testTracker(t)

	_, err := tracker.Apply(result("BTCUSDT", domain.ActionOpen, domain.ExecAccepted))
	require.NoError(t, err)
	filled := result("BTCUSDT", domain.ActionOpen, domain.ExecFilled)
	filled.FilledQty = 4
	filled.FillPrice = 100
	_, err = tracker.Apply(filled)
	require.NoError(t, err)

	_, err = tracker.Apply(result("BTCUSDT", domain.ActionReduce, domain.ExecAccepted))
	require.NoError(t, err)
	reduceFill := result("BTCUSDT", domain.ActionReduce, domain.ExecFilled)
	reduceFill.FilledQty = 1.5
	reduceFill.FillPrice = 110
	pos, err := tracker.Apply(reduceFill)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOpen, pos.State)
	assert.Equal(t, 2.5, pos.Size)

	_, err = tracker.Apply(result("BTCUSDT", domain.ActionClose, domain.ExecAccepted))
	require.NoError(t, err)
	closeFill := result("BTCUSDT", domain.ActionClose, domain.ExecFilled)
	closeFill.FilledQty = 2.5
	closeFill.FillPrice = 120
	pos, err = tracker.Apply(closeFill)
	require.NoError(t, err)

	// CLOSED is transient: the symbol returns to FLAT with no residue
	assert.Equal(t, domain.StateFlat, pos.State)
	assert.Zero(t, pos.Size)
	assert.True(t, tracker.Position("BTCUSDT").Flat())
}

// TestTracker_AddGrowsPositionAtAveragedEntry walks an OPEN position through
// a confirmed addition: the state never leaves OPEN and the fill blends into
// the basis at the size-weighted average price
func TestTracker_AddGrowsPositionAtAveragedEntry(t *testing.T) {
	tracker := testTracker(t)

	_, err := tracker.Apply(result("BTCUSDT", domain.ActionOpen, domain.ExecAccepted))
	require.NoError(t, err)
	filled := result("BTCUSDT", domain.ActionOpen, domain.ExecFilled)
	filled.FilledQty = 2
	filled.FillPrice = 100
	_, err = tracker.Apply(filled)
	require.NoError(t, err)

	addAccepted := result("BTCUSDT", domain.ActionOpen, domain.ExecAccepted)
	pos, err := tracker.Apply(addAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOpen, pos.State)

	addFill := result("BTCUSDT", domain.ActionOpen, domain.ExecFilled)
	addFill.FilledQty = 2
	addFill.FillPrice = 110
	pos, err = tracker.Apply(addFill)
	require.NoError(t, err)
	assert.Equal(t, domain.StateOpen, pos.State)
	assert.Equal(t, 4.0, pos.Size)
	assert.InDelta(t, 105.0, pos.EntryPrice, 1e-9)
	assert.False(t, tracker.HasFailed())
}

// TestTracker_RejectedAddKeepsPosition: a failed addition leaves the existing
// exposure untouched and does not fail the position
func TestTracker_RejectedAddKeepsPosition(t *testing.T) {
	tracker := testTracker(t)

	_, err := tracker.Apply(result("BTCUSDT", domain.ActionOpen, domain.ExecAccepted))
	require.NoError(t, err)
	filled := result("BTCUSDT", domain.ActionOpen, domain.ExecFilled)
	filled.FilledQty = 3
	filled.FillPrice = 100
	_, err = tracker.Apply(filled)
	require.NoError(t, err)

	pos, err := tracker.Apply(result("BTCUSDT", domain.ActionOpen, domain.ExecRejected))
	require.NoError(t, err)
	assert.Equal(t, domain.StateOpen, pos.State)
	assert.Equal(t, 3.0, pos.Size)
	assert.False(t, tracker.HasFailed())
}

// TestTracker_CancelWorkingEntry walks the entry cancel:
// ENTERING -> CLOSING -> CLOSED -> FLAT with nothing filled
func TestTracker_CancelWorkingEntry(t *testing.T) {
	tracker := testTracker(t)

	_, err := tracker.Apply(result("BTCUSDT", domain.ActionOpen, domain.ExecAccepted))
	require.NoError(t, err)

	pos, err := tracker.Apply(result("BTCUSDT", domain.ActionClose, domain.ExecAccepted))
	require.NoError(t, err)
	assert.Equal(t, domain.StateClosing, pos.State)

	pos, err = tracker.Apply(result("BTCUSDT", domain.ActionClose, domain.ExecFilled))
	require.NoError(t, err)
	assert.Equal(t, domain.StateFlat, pos.State)
	assert.Zero(t, pos.Size)
	assert.False(t, tracker.HasFailed())
}

// TestTracker_AddDirectionChangeFailsPosition: an opposing fill on an open
// position is corruption, never a flip
func TestTracker_AddDirectionChangeFailsPosition(t *testing.T) {
	tracker := testTracker(t)

	_, err := tracker.Apply(result("BTCUSDT", domain.ActionOpen, domain.ExecAccepted))
	require.NoError(t, err)
	filled := result("BTCUSDT", domain.ActionOpen, domain.ExecFilled)
	filled.FilledQty = 1
	filled.FillPrice = 100
	_, err = tracker.Apply(filled)
	require.NoError(t, err)

	flip := result("BTCUSDT", domain.ActionOpen, domain.ExecFilled)
	flip.Direction = domain.DirectionShort
	flip.FilledQty = 1
	flip.FillPrice = 100
	pos, err := tracker.Apply(flip)
	assert.Error(t, err)
	assert.Equal(t, domain.StateFailed, pos.State)
}

// TestTracker_IllegalTransitionFailsPosition verifies a fill without prior
// acceptance moves the position to FAILED
func TestTracker_IllegalTransitionFailsPosition(t *testing.T) {
	tracker := testTracker(t)

	fill := result("BTCUSDT", domain.ActionOpen, domain.ExecFilled)
	fill.FilledQty = 1
	fill.FillPrice = 100
	pos, err := tracker.Apply(fill)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, domain.StateFailed, pos.State)
	assert.True(t, tracker.HasFailed())
}

// TestTracker_ReduceOverfillFailsPosition verifies a reduce fill larger than
// the position is treated as corruption, not clamped
func TestTracker_ReduceOverfillFailsPosition(t *testing.T) {
	tracker := testTracker(t)

	_, err := tracker.Apply(result("BTCUSDT", domain.ActionOpen, domain.ExecAccepted))
	require.NoError(t, err)
	filled := result("BTCUSDT", domain.ActionOpen, domain.ExecFilled)
	filled.FilledQty = 1
	filled.FillPrice = 100
	_, err = tracker.Apply(filled)
	require.NoError(t, err)
	_, err = tracker.Apply(result("BTCUSDT", domain.ActionReduce, domain.ExecAccepted))
	require.NoError(t, err)

	over := result("BTCUSDT", domain.ActionReduce, domain.ExecFilled)
	over.FilledQty = 5
	over.FillPrice = 100
	pos, err := tracker.Apply(over)
	assert.Error(t, err)
	assert.Equal(t, domain.StateFailed, pos.State)
}

// TestTracker_ResultForUntrackedSymbol rejects non-entry results for symbols
// with no position
func TestTracker_ResultForUntrackedSymbol(t *testing.T) {
	tracker := testTracker(t)

	_, err := tracker.Apply(result("DOGEUSDT", domain.ActionClose, domain.ExecFilled))
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

// TestTracker_FailedEntryExitsThroughFailed walks the abandoned-entry path:
// ENTERING -> FAILED -> CLOSING -> CLOSED -> FLAT
func TestTracker_FailedEntryExitsThroughFailed(t *testing.T) {
	tracker := testTracker(t)

	_, err := tracker.Apply(result("BTCUSDT", domain.ActionOpen, domain.ExecAccepted))
	require.NoError(t, err)

	pos, err := tracker.Apply(result("BTCUSDT", domain.ActionOpen, domain.ExecRejected))
	require.NoError(t, err)
	assert.Equal(t, domain.StateFailed, pos.State)
	assert.True(t, tracker.HasFailed())

	_, err = tracker.Apply(result("BTCUSDT", domain.ActionClose, domain.ExecAccepted))
	require.NoError(t, err)
	closeFill := result("BTCUSDT", domain.ActionClose, domain.ExecFilled)
	pos, err = tracker.Apply(closeFill)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFlat, pos.State)
	assert.False(t, tracker.HasFailed())
}
