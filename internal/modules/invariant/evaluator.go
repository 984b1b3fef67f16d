package invariant

import (
	"strconv"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

// VerdictKind is the outcome class of an invariant evaluation
type VerdictKind string

const (
	VerdictAllow       VerdictKind = "ALLOW"
	VerdictDeny        VerdictKind = "DENY"
	VerdictForceReduce VerdictKind = "FORCE_REDUCE"
	VerdictForceExit   VerdictKind = "FORCE_EXIT"
)

// Denial reasons recorded in the audit trail. A denied mandate is never
// corrected or resized; it is discarded with its reason.
const (
	ReasonLeverageCap        = "leverage_cap_exceeded"
	ReasonLiquidationBuffer  = "liquidation_buffer_breached"
	ReasonRiskPerTrade       = "risk_per_trade_exceeded"
	ReasonSymbolExposure     = "symbol_exposure_cap"
	ReasonAccountExposure    = "account_exposure_cap"
	ReasonCorrelatedExposure = "correlated_exposure_cap"
	ReasonUselessReduction   = "useless_reduction"
	ReasonNoEquity           = "no_equity"
)

// Verdict is the result of evaluating a proposed mandate or an open position
// against the risk envelope
type Verdict struct {
	Kind   VerdictKind
	Reason string
}

// Allowed reports whether the verdict permits the proposed mandate
func (v Verdict) Allowed() bool {
	return v.Kind == VerdictAllow
}

// Forced reports whether the verdict requires a corrective action
func (v Verdict) Forced() bool {
	return v.Kind == VerdictForceReduce || v.Kind == VerdictForceExit
}

func allow() Verdict             { return Verdict{Kind: VerdictAllow} }
func deny(reason string) Verdict { return Verdict{Kind: VerdictDeny, Reason: reason} }

func force(k VerdictKind, reason string) Verdict {
	return Verdict{Kind: k, Reason: reason}
}

// Evaluator computes invariant verdicts against a fixed risk envelope.
// The envelope is read-only for the whole session.
type Evaluator struct {
	envelope domain.RiskEnvelope
}

// NewEvaluator creates an invariant evaluator for the session envelope
func NewEvaluator(envelope domain.RiskEnvelope) *Evaluator {
	return &Evaluator{envelope: envelope}
}

// Envelope returns the session risk envelope
func (e *Evaluator) Envelope() domain.RiskEnvelope {
	return e.envelope
}

// EvaluatePosition checks an existing position against the envelope and
// returns the corrective verdict, if any. A liquidation-buffer breach forces
// a full exit; cap breaches recoverable by shedding size force a reduction.
// A correlation group is treated as a single symbol for exposure purposes
// and is capped by max_symbol_exposure.
func (e *Evaluator) EvaluatePosition(
	position domain.Position,
	account domain.AccountSnapshot,
	facts ExposureFacts,
	markPrice float64,
) Verdict {
	if position.Flat() {
		return allow()
	}
	if account.Equity <= 0 {
		return force(VerdictForceExit, ReasonNoEquity)
	}

	leverage := EffectiveLeverage(facts.AccountNotional, account.Equity)
	liqPrice := LiquidationPrice(position.EntryPrice, leverage, position.Direction == domain.DirectionLong)
	distance := LiquidationDistance(markPrice, liqPrice)

	if e.envelope.MinLiquidationBuffer > 0 && distance < e.envelope.MinLiquidationBuffer {
		return force(VerdictForceExit, ReasonLiquidationBuffer)
	}
	if e.envelope.MaxEffectiveLeverage > 0 && leverage > e.envelope.MaxEffectiveLeverage {
		return force(VerdictForceReduce, ReasonLeverageCap)
	}
	if e.envelope.MaxSymbolExposure > 0 &&
		exposureRatio(facts.SymbolNotional, account.Equity) > e.envelope.MaxSymbolExposure {
		return force(VerdictForceReduce, ReasonSymbolExposure)
	}
	if e.envelope.MaxAccountExposure > 0 &&
		exposureRatio(facts.AccountNotional, account.Equity) > e.envelope.MaxAccountExposure {
		return force(VerdictForceReduce, ReasonAccountExposure)
	}
	if e.envelope.MaxSymbolExposure > 0 && facts.GroupNotional > 0 &&
		exposureRatio(facts.GroupNotional, account.Equity) > e.envelope.MaxSymbolExposure {
		return force(VerdictForceReduce, ReasonCorrelatedExposure)
	}

	return allow()
}

// Evaluate checks a proposed mandate against the envelope. Pure function:
// identical inputs always yield identical verdicts.
//
// ENTER/ADD are denied when the account already sits at or beyond any cap,
// because any added exposure would decrease liquidation distance or push
// leverage past its cap. REDUCE is denied only when it would not strictly
// improve at least one of leverage, liquidation distance or exposure:
// reductions that don't help are noise and are rejected rather than resized.
func (e *Evaluator) Evaluate(
	position domain.Position,
	account domain.AccountSnapshot,
	facts ExposureFacts,
	markPrice float64,
	mandate domain.Mandate,
) Verdict {
	switch mandate.Type {
	case domain.MandateExit, domain.MandateBlock, domain.MandateHold:
		// Never risk-increasing; always permitted by the invariant layer.
		return allow()

	case domain.MandateReduce:
		return e.evaluateReduce(position, account, facts, markPrice, mandate)

	case domain.MandateEnter, domain.MandateAdd:
		return e.evaluateIncrease(position, account, facts, markPrice, mandate)

	default:
		return deny("unknown mandate type")
	}
}

func (e *Evaluator) evaluateReduce(
	position domain.Position,
	account domain.AccountSnapshot,
	facts ExposureFacts,
	markPrice float64,
	mandate domain.Mandate,
) Verdict {
	if position.Flat() {
		return deny(ReasonUselessReduction)
	}
	// An explicit positive quantity strictly shrinks notional, which
	// strictly improves both leverage and exposure.
	if mandate.ReduceQuantity > 0 {
		return allow()
	}
	// Quantity left to the constructor: only useful when some invariant
	// is actually violated, otherwise the minimum restoring amount is
	// zero and the reduction is pointless.
	if e.EvaluatePosition(position, account, facts, markPrice).Forced() {
		return allow()
	}
	return deny(ReasonUselessReduction)
}

func (e *Evaluator) evaluateIncrease(
	position domain.Position,
	account domain.AccountSnapshot,
	facts ExposureFacts,
	markPrice float64,
	mandate domain.Mandate,
) Verdict {
	if account.Equity <= 0 {
		return deny(ReasonNoEquity)
	}

	leverage := EffectiveLeverage(facts.AccountNotional, account.Equity)
	if e.envelope.MaxEffectiveLeverage > 0 && leverage >= e.envelope.MaxEffectiveLeverage {
		return deny(ReasonLeverageCap)
	}
	if e.envelope.MaxAccountExposure > 0 &&
		exposureRatio(facts.AccountNotional, account.Equity) >= e.envelope.MaxAccountExposure {
		return deny(ReasonAccountExposure)
	}
	if e.envelope.MaxSymbolExposure > 0 &&
		exposureRatio(facts.SymbolNotional, account.Equity) >= e.envelope.MaxSymbolExposure {
		return deny(ReasonSymbolExposure)
	}
	if e.envelope.MaxSymbolExposure > 0 && facts.GroupNotional > 0 &&
		exposureRatio(facts.GroupNotional, account.Equity) >= e.envelope.MaxSymbolExposure {
		return deny(ReasonCorrelatedExposure)
	}

	// Adding to a position already near its liquidation price is denied:
	// more size can only decrease the distance.
	if mandate.Type == domain.MandateAdd && !position.Flat() {
		liqPrice := LiquidationPrice(position.EntryPrice, leverage, position.Direction == domain.DirectionLong)
		distance := LiquidationDistance(markPrice, liqPrice)
		if e.envelope.MinLiquidationBuffer > 0 && distance <= e.envelope.MinLiquidationBuffer {
			return deny(ReasonLiquidationBuffer)
		}
	}

	return allow()
}

// ForcedMandate converts a FORCE verdict into the synthetic mandate the
// arbitration engine injects unconditionally. The trigger id is derived from
// the symbol, cycle and reason so that replaying a cycle reproduces the
// mandate byte for byte.
func ForcedMandate(symbol string, cycle uint64, position domain.Position, verdict Verdict) (domain.Mandate, bool) {
	var mandateType domain.MandateType
	switch verdict.Kind {
	case VerdictForceExit:
		mandateType = domain.MandateExit
	case VerdictForceReduce:
		mandateType = domain.MandateReduce
	default:
		return domain.Mandate{}, false
	}
	return domain.Mandate{
		Type:      mandateType,
		Symbol:    symbol,
		Direction: position.Direction,
		Forced:    true,
		Scope:     verdict.Reason,
		TriggerID: forcedTriggerID(symbol, cycle, verdict.Reason),
	}, true
}

func forcedTriggerID(symbol string, cycle uint64, reason string) string {
	// Deterministic: replay of the same cycle yields the same id.
	return "forced/" + symbol + "/" + reason + "/" + strconv.FormatUint(cycle, 10)
}
