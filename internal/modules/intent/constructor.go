// Package intent implements the execution intent constructor: it turns the
// single selected mandate into a fully-specified, atomic execution intent,
// applying deterministic sizing and leverage derivation. The constructor
// never relaxes a cap to make an action fit; when no size satisfies every
// cap simultaneously it emits nothing.
package intent

import (
	"math"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/invariant"
)

// Constructor builds execution intents against the session risk envelope
type Constructor struct {
	envelope domain.RiskEnvelope
}

// NewConstructor creates an intent constructor
func NewConstructor(envelope domain.RiskEnvelope) *Constructor {
	return &Constructor{envelope: envelope}
}

// Build converts the selected mandate into an execution intent, or nil when
// the mandate resolves to no executable action (HOLD/BLOCK, or a suppressed
// entry). Pure function over its inputs.
func (c *Constructor) Build(
	mandate domain.Mandate,
	position domain.Position,
	account domain.AccountSnapshot,
	facts invariant.ExposureFacts,
	markPrice float64,
) *domain.ExecutionIntent {
	switch mandate.Type {
	case domain.MandateHold, domain.MandateBlock:
		// Permission-shaping only; nothing to execute.
		return nil
	case domain.MandateExit:
		return c.buildExit(mandate, position)
	case domain.MandateReduce:
		return c.buildReduce(mandate, position, account, facts, markPrice)
	case domain.MandateEnter, domain.MandateAdd:
		return c.buildIncrease(mandate, position, account, facts, markPrice)
	default:
		return nil
	}
}

// buildExit emits the full remaining size unconditionally, with no sizing
// logic. For a position still ENTERING this is the cancel: zero quantity.
func (c *Constructor) buildExit(mandate domain.Mandate, position domain.Position) *domain.ExecutionIntent {
	return &domain.ExecutionIntent{
		Symbol:    mandate.Symbol,
		Action:    domain.ActionClose,
		Direction: position.Direction,
		Quantity:  position.Size,
		PriceType: domain.PriceMarket,
		TriggerID: mandate.TriggerID,
	}
}

// buildReduce computes the reduction quantity. A forced or unsized REDUCE
// sheds the minimum amount that restores every violated invariant: each
// violated cap has a closed-form minimal reduction, and because every
// invariant improves monotonically as size shrinks, the maximum of those
// minima restores all of them at once. An explicitly sized REDUCE uses the
// proposed quantity clamped to the position.
func (c *Constructor) buildReduce(
	mandate domain.Mandate,
	position domain.Position,
	account domain.AccountSnapshot,
	facts invariant.ExposureFacts,
	markPrice float64,
) *domain.ExecutionIntent {
	if position.Size <= 0 || markPrice <= 0 {
		return nil
	}

	quantity := mandate.ReduceQuantity
	if quantity <= 0 {
		quantity = c.minimumRestoringReduction(position, account, facts, markPrice)
	}
	if quantity > position.Size {
		quantity = position.Size
	}
	if quantity <= 0 {
		return nil
	}

	return &domain.ExecutionIntent{
		Symbol:    mandate.Symbol,
		Action:    domain.ActionReduce,
		Direction: position.Direction,
		Quantity:  quantity,
		PriceType: domain.PriceMarket,
		TriggerID: mandate.TriggerID,
	}
}

// minimumRestoringReduction returns the smallest size reduction that brings
// leverage and every exposure back inside its cap. Never more: anything
// beyond the maximum of the per-cap minima would be a disguised exit.
func (c *Constructor) minimumRestoringReduction(
	position domain.Position,
	account domain.AccountSnapshot,
	facts invariant.ExposureFacts,
	markPrice float64,
) float64 {
	if account.Equity <= 0 {
		return position.Size
	}

	var required float64

	consider := func(excessNotional float64) {
		if excessNotional <= 0 {
			return
		}
		qty := excessNotional / markPrice
		if qty > required {
			required = qty
		}
	}

	if c.envelope.MaxEffectiveLeverage > 0 {
		consider(facts.AccountNotional - c.envelope.MaxEffectiveLeverage*account.Equity)
	}
	if c.envelope.MaxAccountExposure > 0 {
		consider(facts.AccountNotional - c.envelope.MaxAccountExposure*account.Equity)
	}
	if c.envelope.MaxSymbolExposure > 0 {
		consider(facts.SymbolNotional - c.envelope.MaxSymbolExposure*account.Equity)
		if facts.GroupNotional > 0 {
			consider(facts.GroupNotional - c.envelope.MaxSymbolExposure*account.Equity)
		}
	}

	if required > position.Size {
		required = position.Size
	}
	return required
}

// buildIncrease sizes an entry or addition as the minimum of the risk-based,
// leverage-cap and liquidation-safe sizes. If no size satisfies all three
// simultaneously the entry is suppressed, never resized by relaxing a cap.
func (c *Constructor) buildIncrease(
	mandate domain.Mandate,
	position domain.Position,
	account domain.AccountSnapshot,
	facts invariant.ExposureFacts,
	markPrice float64,
) *domain.ExecutionIntent {
	if account.Equity <= 0 || markPrice <= 0 {
		return nil
	}

	stopPrice := mandate.StopPrice
	if mandate.Type == domain.MandateAdd {
		stopPrice = tightenedStop(position, mandate.StopPrice)
	}
	stopDistance := math.Abs(markPrice - stopPrice)
	if stopPrice <= 0 || stopDistance <= 0 {
		// An entry without a protective stop cannot be sized.
		return nil
	}

	size := math.Inf(1)
	consider := func(candidate float64) {
		if candidate < size {
			size = candidate
		}
	}

	if c.envelope.MaxRiskPerTrade > 0 {
		maxLossBudget := c.envelope.MaxRiskPerTrade * account.Equity
		consider(maxLossBudget / stopDistance)
	}
	if c.envelope.MaxEffectiveLeverage > 0 {
		headroom := c.envelope.MaxEffectiveLeverage*account.Equity - facts.AccountNotional
		consider(headroom / markPrice)
	}
	if c.envelope.MinLiquidationBuffer > 0 {
		// Post-entry leverage L' must satisfy 1/L' >= buffer, so the
		// total notional may not exceed equity/buffer.
		headroom := account.Equity/c.envelope.MinLiquidationBuffer - facts.AccountNotional
		consider(headroom / markPrice)
	}
	if c.envelope.MaxSymbolExposure > 0 {
		headroom := c.envelope.MaxSymbolExposure*account.Equity - facts.SymbolNotional
		consider(headroom / markPrice)
	}

	if math.IsInf(size, 1) || size <= 0 {
		return nil
	}

	return &domain.ExecutionIntent{
		Symbol:    mandate.Symbol,
		Action:    domain.ActionOpen,
		Direction: mandate.Direction,
		Quantity:  size,
		PriceType: domain.PriceMarket,
		StopPrice: stopPrice,
		TriggerID: mandate.TriggerID,
	}
}

// tightenedStop keeps the tighter of the existing and proposed stops: the
// constructor never moves a stop away from entry.
func tightenedStop(position domain.Position, proposed float64) float64 {
	if position.StopPrice == 0 {
		return proposed
	}
	if proposed == 0 {
		return position.StopPrice
	}
	switch position.Direction {
	case domain.DirectionLong:
		return math.Max(position.StopPrice, proposed)
	case domain.DirectionShort:
		return math.Min(position.StopPrice, proposed)
	default:
		return proposed
	}
}
