package invariant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

func testEnvelope() domain.RiskEnvelope {
	return domain.RiskEnvelope{
		MaxRiskPerTrade:      0.01,
		MaxAccountExposure:   2.0,
		MaxSymbolExposure:    0.5,
		MinLiquidationBuffer: 0.15,
		MaxEffectiveLeverage: 3.0,
	}
}

func openLong(size, entry float64) domain.Position {
	return domain.Position{
		Symbol:     "BTCUSDT",
		Direction:  domain.DirectionLong,
		Size:       size,
		EntryPrice: entry,
		State:      domain.StateOpen,
	}
}

// TestEffectiveLeverage_Derivation confirms leverage is notional over equity
func TestEffectiveLeverage_Derivation(t *testing.T) {
	assert.Equal(t, 2.0, EffectiveLeverage(20000, 10000))
	assert.Equal(t, 0.0, EffectiveLeverage(0, 10000))
	assert.True(t, math.IsInf(EffectiveLeverage(100, 0), 1))
}

// TestLiquidationPrice_ClosedForm checks both directions
func TestLiquidationPrice_ClosedForm(t *testing.T) {
	// Long at 100 with 2x leverage liquidates at 50
	assert.InDelta(t, 50.0, LiquidationPrice(100, 2, true), 1e-9)
	// Short at 100 with 4x leverage liquidates at 125
	assert.InDelta(t, 125.0, LiquidationPrice(100, 4, false), 1e-9)
	assert.Equal(t, 0.0, LiquidationPrice(100, 0, true))
}

// TestLiquidationDistance_Normalization
func TestLiquidationDistance_Normalization(t *testing.T) {
	assert.InDelta(t, 0.5, LiquidationDistance(100, 50), 1e-9)
	assert.InDelta(t, 0.25, LiquidationDistance(100, 125), 1e-9)
	assert.Equal(t, 0.0, LiquidationDistance(0, 50))
}

// TestEvaluatePosition_Healthy allows a comfortable position through
func TestEvaluatePosition_Healthy(t *testing.T) {
	e := NewEvaluator(testEnvelope())
	account := domain.AccountSnapshot{Equity: 10000}
	facts := ExposureFacts{SymbolNotional: 4000, AccountNotional: 4000}

	verdict := e.EvaluatePosition(openLong(40, 100), account, facts, 100)
	assert.Equal(t, VerdictAllow, verdict.Kind)
}

// TestEvaluatePosition_LiquidationBufferForcesExit: a breach of the minimum
// liquidation buffer is the one violation that immediately forces a full exit
func TestEvaluatePosition_LiquidationBufferForcesExit(t *testing.T) {
	e := NewEvaluator(testEnvelope())
	account := domain.AccountSnapshot{Equity: 10000}
	// Leverage 2.9x keeps the leverage cap satisfied while the liquidation
	// price sits ~34% below entry; a mark collapsed toward it breaches the
	// 15% buffer.
	facts := ExposureFacts{SymbolNotional: 29000, AccountNotional: 29000}

	verdict := e.EvaluatePosition(openLong(290, 100), account, facts, 70)
	assert.Equal(t, VerdictForceExit, verdict.Kind)
	assert.Equal(t, ReasonLiquidationBuffer, verdict.Reason)
}

// TestEvaluatePosition_LeverageCapForcesReduce
func TestEvaluatePosition_LeverageCapForcesReduce(t *testing.T) {
	e := NewEvaluator(testEnvelope())
	account := domain.AccountSnapshot{Equity: 10000}
	facts := ExposureFacts{SymbolNotional: 35000, AccountNotional: 35000}

	verdict := e.EvaluatePosition(openLong(350, 100), account, facts, 100)
	assert.Equal(t, VerdictForceReduce, verdict.Kind)
	assert.Equal(t, ReasonLeverageCap, verdict.Reason)
}

// TestEvaluatePosition_CorrelatedGroupCap treats the group as one symbol
func TestEvaluatePosition_CorrelatedGroupCap(t *testing.T) {
	e := NewEvaluator(testEnvelope())
	account := domain.AccountSnapshot{Equity: 10000}
	// Symbol itself is inside its cap, the group is not.
	facts := ExposureFacts{SymbolNotional: 3000, GroupNotional: 6000, AccountNotional: 6000}

	verdict := e.EvaluatePosition(openLong(30, 100), account, facts, 100)
	assert.Equal(t, VerdictForceReduce, verdict.Kind)
	assert.Equal(t, ReasonCorrelatedExposure, verdict.Reason)
}

// TestEvaluatePosition_NoEquityForcesExit
func TestEvaluatePosition_NoEquityForcesExit(t *testing.T) {
	e := NewEvaluator(testEnvelope())
	verdict := e.EvaluatePosition(openLong(1, 100), domain.AccountSnapshot{Equity: 0},
		ExposureFacts{SymbolNotional: 100, AccountNotional: 100}, 100)
	assert.Equal(t, VerdictForceExit, verdict.Kind)
}

// TestEvaluate_NonIncreasingAlwaysAllowed: EXIT, BLOCK and HOLD never
// increase risk and pass the invariant layer unconditionally
func TestEvaluate_NonIncreasingAlwaysAllowed(t *testing.T) {
	e := NewEvaluator(testEnvelope())
	account := domain.AccountSnapshot{Equity: 1} // hopelessly overextended
	facts := ExposureFacts{SymbolNotional: 1e6, AccountNotional: 1e6}
	pos := openLong(10000, 100)

	for _, mt := range []domain.MandateType{domain.MandateExit, domain.MandateBlock, domain.MandateHold} {
		verdict := e.Evaluate(pos, account, facts, 100, domain.Mandate{Type: mt, Symbol: "BTCUSDT", TriggerID: "t"})
		assert.True(t, verdict.Allowed(), "mandate %s", mt)
	}
}

// TestEvaluate_EnterDeniedAtCaps denies entries once any cap is reached
func TestEvaluate_EnterDeniedAtCaps(t *testing.T) {
	e := NewEvaluator(testEnvelope())
	enter := domain.Mandate{Type: domain.MandateEnter, Symbol: "BTCUSDT", Direction: domain.DirectionLong, TriggerID: "t"}

	testCases := []struct {
		name   string
		facts  ExposureFacts
		equity float64
		reason string
	}{
		{"leverage cap", ExposureFacts{AccountNotional: 30000}, 10000, ReasonLeverageCap},
		{"account exposure cap", ExposureFacts{AccountNotional: 25000}, 10000, ReasonAccountExposure},
		{"symbol exposure cap", ExposureFacts{SymbolNotional: 5000, AccountNotional: 5000}, 10000, ReasonSymbolExposure},
		{"correlated exposure cap", ExposureFacts{SymbolNotional: 1000, GroupNotional: 5000, AccountNotional: 5000}, 10000, ReasonCorrelatedExposure},
		{"no equity", ExposureFacts{}, 0, ReasonNoEquity},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := e.Evaluate(domain.Position{Symbol: "BTCUSDT", State: domain.StateFlat, Direction: domain.DirectionNone},
				domain.AccountSnapshot{Equity: tc.equity}, tc.facts, 100, enter)
			require.Equal(t, VerdictDeny, verdict.Kind)
			assert.Equal(t, tc.reason, verdict.Reason)
		})
	}
}

// TestEvaluate_ReduceOnFlatIsUseless
func TestEvaluate_ReduceOnFlatIsUseless(t *testing.T) {
	e := NewEvaluator(testEnvelope())
	verdict := e.Evaluate(domain.Position{Symbol: "BTCUSDT", State: domain.StateFlat, Direction: domain.DirectionNone},
		domain.AccountSnapshot{Equity: 10000}, ExposureFacts{},
		100, domain.Mandate{Type: domain.MandateReduce, Symbol: "BTCUSDT", TriggerID: "t"})
	assert.Equal(t, VerdictDeny, verdict.Kind)
	assert.Equal(t, ReasonUselessReduction, verdict.Reason)
}

// TestEvaluate_UnsizedReduceNeedsViolation: an unsized REDUCE on a healthy
// position restores nothing and is denied; on a violating position it passes
func TestEvaluate_UnsizedReduceNeedsViolation(t *testing.T) {
	e := NewEvaluator(testEnvelope())
	account := domain.AccountSnapshot{Equity: 10000}
	unsized := domain.Mandate{Type: domain.MandateReduce, Symbol: "BTCUSDT", TriggerID: "t"}

	healthy := e.Evaluate(openLong(40, 100), account,
		ExposureFacts{SymbolNotional: 4000, AccountNotional: 4000}, 100, unsized)
	assert.Equal(t, VerdictDeny, healthy.Kind)

	violating := e.Evaluate(openLong(350, 100), account,
		ExposureFacts{SymbolNotional: 35000, AccountNotional: 35000}, 100, unsized)
	assert.True(t, violating.Allowed())
}

// TestForcedMandate_Deterministic: same inputs yield byte-identical mandates
func TestForcedMandate_Deterministic(t *testing.T) {
	pos := openLong(10, 100)
	verdict := Verdict{Kind: VerdictForceReduce, Reason: ReasonLeverageCap}

	a, ok := ForcedMandate("BTCUSDT", 42, pos, verdict)
	require.True(t, ok)
	b, ok := ForcedMandate("BTCUSDT", 42, pos, verdict)
	require.True(t, ok)

	assert.Equal(t, a, b)
	assert.True(t, a.Forced)
	assert.Equal(t, domain.MandateReduce, a.Type)
	assert.Equal(t, "forced/BTCUSDT/leverage_cap_exceeded/42", a.TriggerID)

	_, ok = ForcedMandate("BTCUSDT", 42, pos, Verdict{Kind: VerdictAllow})
	assert.False(t, ok)
}
