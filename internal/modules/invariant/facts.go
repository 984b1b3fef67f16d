// Package invariant implements the pure invariant evaluator: risk, leverage,
// liquidation and exposure facts computed from position and account state,
// and the ALLOW/DENY/FORCE verdicts derived from them. Everything here is a
// pure function over immutable snapshots; there is no I/O and no clock.
package invariant

import "math"

// ExposureFacts carries the precomputed, read-only exposure aggregates a
// symbol worker needs. They are computed once per cycle before per-symbol
// evaluation begins, never via live cross-symbol queries.
type ExposureFacts struct {
	// SymbolNotional is this symbol's current notional exposure.
	SymbolNotional float64
	// GroupNotional is the summed notional of the symbol's correlation
	// group (including the symbol itself). Zero when ungrouped.
	GroupNotional float64
	// AccountNotional is the summed notional across all symbols.
	AccountNotional float64
}

// EffectiveLeverage derives leverage from notional and equity. Leverage is
// always derived, never an input.
func EffectiveLeverage(totalNotional, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return totalNotional / equity
}

// LiquidationPrice returns the cross-margin liquidation price for a position
// entered at the given price with the given effective leverage. The closed
// form ignores maintenance margin: the position liquidates when the adverse
// move consumes 1/leverage of the entry price.
func LiquidationPrice(entryPrice, leverage float64, long bool) float64 {
	if leverage <= 0 {
		return 0
	}
	if long {
		return entryPrice * (1 - 1/leverage)
	}
	return entryPrice * (1 + 1/leverage)
}

// LiquidationDistance returns |mark − liquidationPrice| / mark. A distance
// of zero means the position is at its liquidation price.
func LiquidationDistance(markPrice, liquidationPrice float64) float64 {
	if markPrice <= 0 {
		return 0
	}
	return math.Abs(markPrice-liquidationPrice) / markPrice
}

// RiskPerTrade returns the capital at risk between entry and stop for the
// given size. With no stop set the full notional is at risk.
func RiskPerTrade(size, entryPrice, stopPrice float64) float64 {
	if size <= 0 {
		return 0
	}
	if stopPrice <= 0 {
		return size * entryPrice
	}
	return size * math.Abs(entryPrice-stopPrice)
}

// exposureRatio expresses a notional as a fraction of equity
func exposureRatio(notional, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return notional / equity
}
