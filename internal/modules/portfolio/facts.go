// Package portfolio provides the cross-symbol layer: the precomputed,
// read-only exposure fact set consumed by per-symbol evaluation, and the
// repository persisting confirmed position state. Portfolio-level caps are
// injected into symbol pipelines as facts computed here before the cycle
// fans out; symbol workers never query each other.
package portfolio

import (
	"gonum.org/v1/gonum/floats"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/invariant"
)

// FactSet is the immutable per-cycle exposure aggregate. Built once at
// cycle start, then read concurrently by symbol workers.
type FactSet struct {
	notionalBySymbol map[string]float64
	notionalByGroup  map[string]float64
	groupOfSymbol    map[string]string
	accountNotional  float64
}

// BuildFactSet aggregates the notional exposure of all tracked positions at
// the cycle's mark prices. Positions whose symbol has no mark this cycle are
// valued at their entry price; exposure must never silently drop to zero
// because a feed went quiet.
func BuildFactSet(
	positions []domain.Position,
	marks map[string]float64,
	envelope domain.RiskEnvelope,
) FactSet {
	fs := FactSet{
		notionalBySymbol: make(map[string]float64, len(positions)),
		notionalByGroup:  make(map[string]float64),
		groupOfSymbol:    make(map[string]string),
	}

	notionals := make([]float64, 0, len(positions))
	for _, p := range positions {
		if p.Flat() {
			continue
		}
		mark := marks[p.Symbol]
		if mark <= 0 {
			mark = p.EntryPrice
		}
		notional := p.Notional(mark)
		fs.notionalBySymbol[p.Symbol] = notional
		notionals = append(notionals, notional)

		if group, ok := envelope.GroupOf(p.Symbol); ok {
			fs.groupOfSymbol[p.Symbol] = group
			fs.notionalByGroup[group] += notional
		}
	}
	fs.accountNotional = floats.Sum(notionals)

	// Symbols with no position still need their group mapping so an ENTER
	// is checked against the group's existing exposure.
	for group, symbols := range envelope.CorrelationGroups {
		for _, s := range symbols {
			if _, seen := fs.groupOfSymbol[s]; !seen {
				fs.groupOfSymbol[s] = group
			}
		}
	}

	return fs
}

// AccountNotional returns the summed notional across all symbols
func (f FactSet) AccountNotional() float64 {
	return f.accountNotional
}

// GroupNotional returns the summed notional of a correlation group
func (f FactSet) GroupNotional(group string) float64 {
	return f.notionalByGroup[group]
}

// For returns the exposure facts one symbol's pipeline needs
func (f FactSet) For(symbol string) invariant.ExposureFacts {
	facts := invariant.ExposureFacts{
		SymbolNotional:  f.notionalBySymbol[symbol],
		AccountNotional: f.accountNotional,
	}
	if group, ok := f.groupOfSymbol[symbol]; ok {
		facts.GroupNotional = f.notionalByGroup[group]
	}
	return facts
}

// ExposureRatio returns account exposure as a fraction of equity, the
// quantity the halt supervisor compares against the hard ceiling
func (f FactSet) ExposureRatio(equity float64) float64 {
	if equity <= 0 {
		if f.accountNotional > 0 {
			return 1e18 // effectively infinite
		}
		return 0
	}
	return f.accountNotional / equity
}
