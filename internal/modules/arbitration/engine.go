// Package arbitration implements deterministic mandate arbitration: the pure
// selection of at most one admissible mandate per symbol per cycle, given the
// fixed authority ordering and the invariant evaluator's verdicts.
//
// Arbitrate is a pure function: no I/O, no mutation of its inputs, no
// randomness, no wall-clock dependence, no cross-symbol coupling. Identical
// inputs produce byte-identical results across runs and process restarts.
package arbitration

import (
	"sort"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/invariant"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/lifecycle"
)

// Input carries everything one symbol's arbitration needs for one cycle.
// All fields are immutable snapshots; portfolio-level constraints arrive as
// precomputed exposure facts, never as live cross-symbol queries.
type Input struct {
	Symbol    string
	Cycle     uint64
	Position  domain.Position
	Account   domain.AccountSnapshot
	Facts     invariant.ExposureFacts
	MarkPrice float64

	// Candidates are the strategy-proposed mandates, already structurally
	// validated. Treated as untrusted: they pass the same invariant
	// filtering as anything else.
	Candidates []domain.Mandate

	// Forced are the synthetic mandates injected from FORCE verdicts.
	// They bypass the invariant filter by construction.
	Forced []domain.Mandate

	// Halted suppresses every non-EXIT mandate.
	Halted bool

	// DataIntegrityOK is false when the symbol's primitive snapshot is
	// missing, stale or inadmissible; risk-increasing mandates are then
	// discarded.
	DataIntegrityOK bool
}

// Engine performs arbitration using the session invariant evaluator
type Engine struct {
	evaluator *invariant.Evaluator
}

// NewEngine creates an arbitration engine
func NewEngine(evaluator *invariant.Evaluator) *Engine {
	return &Engine{evaluator: evaluator}
}

// Arbitrate selects the single highest-authority admissible mandate, or
// NO_ACTION. Every discarded mandate is recorded with exactly one reason.
func (e *Engine) Arbitrate(in Input) domain.ArbitrationResult {
	result := domain.ArbitrationResult{
		Symbol: in.Symbol,
		Cycle:  in.Cycle,
	}

	survivors := make([]domain.Mandate, 0, len(in.Candidates)+len(in.Forced))

	discard := func(m domain.Mandate, reason domain.DiscardReason) {
		result.Discarded = append(result.Discarded, domain.DiscardedMandate{Mandate: m, Reason: reason})
	}

	// Strategy-originated mandates: halt supremacy first, then lifecycle
	// admissibility, then invariant verdicts.
	for _, m := range in.Candidates {
		switch {
		case in.Halted && m.Type != domain.MandateExit:
			discard(m, domain.DiscardHalted)
		case !in.DataIntegrityOK && m.Type.RiskIncreasing():
			discard(m, domain.DiscardDataIntegrity)
		case !lifecycle.Admissible(in.Position.State, m.Type):
			discard(m, domain.DiscardStateInadmissible)
		default:
			verdict := e.evaluator.Evaluate(in.Position, in.Account, in.Facts, in.MarkPrice, m)
			if !verdict.Allowed() {
				discard(m, domain.DiscardInvariantDenied)
			} else {
				survivors = append(survivors, m)
			}
		}
	}

	// Forced mandates are injected unconditionally. The lifecycle filter
	// still applies: a forced REDUCE is meaningless in CLOSING, for
	// example, while FAILED admits the forced EXIT by construction.
	for _, m := range in.Forced {
		if lifecycle.Admissible(in.Position.State, m.Type) {
			survivors = append(survivors, m)
		} else {
			discard(m, domain.DiscardStateInadmissible)
		}
	}

	// Directional-ambiguity rule: simultaneous opposing entries on a flat
	// symbol cancel each other; none may win.
	survivors = e.filterAmbiguousEntries(in.Position, survivors, discard)

	if len(survivors) == 0 {
		return result
	}

	rankMandates(in.Position, survivors)

	selected := survivors[0]
	result.Selected = &selected

	// Losing to a forced mandate means the invariant layer overrode the
	// loser; losing to another strategy mandate is plain rank.
	loserReason := domain.DiscardLowerAuthority
	if selected.Forced {
		loserReason = domain.DiscardInvariantDenied
	}
	for _, m := range survivors[1:] {
		discard(m, loserReason)
	}
	return result
}

// filterAmbiguousEntries removes every ENTER when the surviving set proposes
// both directions on a flat symbol
func (e *Engine) filterAmbiguousEntries(
	position domain.Position,
	survivors []domain.Mandate,
	discard func(domain.Mandate, domain.DiscardReason),
) []domain.Mandate {
	if position.State != domain.StateFlat {
		return survivors
	}

	var long, short bool
	for _, m := range survivors {
		if m.Type == domain.MandateEnter {
			switch m.Direction {
			case domain.DirectionLong:
				long = true
			case domain.DirectionShort:
				short = true
			}
		}
	}
	if !long || !short {
		return survivors
	}

	kept := survivors[:0]
	for _, m := range survivors {
		if m.Type == domain.MandateEnter {
			discard(m, domain.DiscardDirectionalAmbiguity)
		} else {
			kept = append(kept, m)
		}
	}
	return kept
}

// rankMandates orders survivors best-first by the fixed global authority
// EXIT > REDUCE > BLOCK > HOLD > ADD > ENTER. Forced mandates dominate
// strategy mandates of the same tier. Same-type REDUCE ties resolve by the
// largest risk-improving reduction; any remaining tie breaks on trigger id
// byte order so the ordering is total and deterministic.
func rankMandates(position domain.Position, mandates []domain.Mandate) {
	sort.SliceStable(mandates, func(i, j int) bool {
		a, b := mandates[i], mandates[j]
		if a.Type.Authority() != b.Type.Authority() {
			return a.Type.Authority() > b.Type.Authority()
		}
		if a.Forced != b.Forced {
			return a.Forced
		}
		if a.Type == domain.MandateReduce {
			ra, rb := effectiveReduction(position, a), effectiveReduction(position, b)
			if ra != rb {
				return ra > rb
			}
		}
		return a.TriggerID < b.TriggerID
	})
}

// effectiveReduction is the quantity a REDUCE mandate would actually shed,
// clamped to the position size
func effectiveReduction(position domain.Position, m domain.Mandate) float64 {
	q := m.ReduceQuantity
	if q > position.Size {
		q = position.Size
	}
	return q
}
