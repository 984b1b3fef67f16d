package domain

import (
	"fmt"
	"time"
)

// Position represents the engine's view of a single symbol's position.
// Invariants: at most one non-FLAT position per symbol; direction immutable
// while non-FLAT; size monotonically non-increasing except via ENTRY/ADD
// transitions validated against risk.
type Position struct {
	Symbol              string        `json:"symbol"`
	Direction           Direction     `json:"direction"`
	Size                float64       `json:"size"`
	EntryPrice          float64       `json:"entry_price"`
	StopPrice           float64       `json:"stop_price"`
	State               PositionState `json:"state"`
	RiskReserved        float64       `json:"risk_reserved"`
	LiquidationDistance float64       `json:"liquidation_distance"`
}

// Flat reports whether the position holds no exposure
func (p Position) Flat() bool {
	return p.State == StateFlat || p.Size == 0
}

// Notional returns the position notional at the given mark price
func (p Position) Notional(markPrice float64) float64 {
	size := p.Size
	if size < 0 {
		size = -size
	}
	return size * markPrice
}

// Validate checks structural validity of the position
func (p Position) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("position missing symbol")
	}
	if !p.State.Valid() {
		return fmt.Errorf("invalid position state: %s", p.State)
	}
	if !p.Direction.Valid() {
		return fmt.Errorf("invalid position direction: %s", p.Direction)
	}
	if p.Size < 0 {
		return fmt.Errorf("negative position size: %f", p.Size)
	}
	if p.State == StateFlat && p.Size != 0 {
		return fmt.Errorf("FLAT position with non-zero size: %f", p.Size)
	}
	return nil
}

// Mandate is a typed, ephemeral permission proposal for one action class on
// one symbol. Mandates exist only within a single evaluation cycle and are
// never persisted or merged across cycles. TriggerID uniquely identifies the
// mandate for auditability.
type Mandate struct {
	Type          MandateType     `json:"type"`
	Symbol        string          `json:"symbol"`
	Direction     Direction       `json:"direction"`
	AuthorityRank int             `json:"authority_rank"`
	Preconditions []PositionState `json:"preconditions,omitempty"`
	Scope         string          `json:"scope,omitempty"`
	ExpiryCond    string          `json:"expiry_condition,omitempty"`
	TriggerID     string          `json:"trigger_id"`

	// Forced marks a mandate injected by the invariant evaluator. Forced
	// mandates cannot be suppressed by any strategy-originated mandate.
	Forced bool `json:"forced,omitempty"`

	// ReduceQuantity is the quantity a REDUCE mandate proposes to shed.
	// Zero means "let the constructor compute the minimum restoring amount".
	ReduceQuantity float64 `json:"reduce_quantity,omitempty"`

	// StopPrice is the protective stop an ENTER/ADD mandate proposes.
	// Entries without a stop cannot be sized and are never constructed.
	StopPrice float64 `json:"stop_price,omitempty"`
}

// Validate checks structural validity of a mandate proposed by an external
// (untrusted) strategy layer
func (m Mandate) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("invalid mandate type: %s", m.Type)
	}
	if m.Symbol == "" {
		return fmt.Errorf("mandate missing symbol")
	}
	if m.TriggerID == "" {
		return fmt.Errorf("mandate missing trigger_id")
	}
	if (m.Type == MandateEnter || m.Type == MandateAdd) && m.Direction == DirectionNone {
		return fmt.Errorf("%s mandate requires a direction", m.Type)
	}
	return nil
}

// RiskEnvelope holds the externally configured risk caps and buffers.
// Loaded once at startup, read-only to the engine for the whole session.
type RiskEnvelope struct {
	MaxRiskPerTrade      float64             `yaml:"max_risk_per_trade" json:"max_risk_per_trade"`
	MaxAccountExposure   float64             `yaml:"max_account_exposure" json:"max_account_exposure"`
	MaxSymbolExposure    float64             `yaml:"max_symbol_exposure" json:"max_symbol_exposure"`
	MinLiquidationBuffer float64             `yaml:"min_liquidation_buffer" json:"min_liquidation_buffer"`
	MaxEffectiveLeverage float64             `yaml:"max_effective_leverage" json:"max_effective_leverage"`
	HardExposureCeiling  float64             `yaml:"hard_exposure_ceiling" json:"hard_exposure_ceiling"`
	CorrelationGroups    map[string][]string `yaml:"correlation_groups" json:"correlation_groups"`
}

// Validate checks the envelope for values that would make every evaluation
// degenerate. A zero cap means "no limit" and is allowed.
func (e RiskEnvelope) Validate() error {
	if e.MaxRiskPerTrade < 0 || e.MaxAccountExposure < 0 || e.MaxSymbolExposure < 0 {
		return fmt.Errorf("risk envelope caps must be non-negative")
	}
	if e.MinLiquidationBuffer < 0 || e.MinLiquidationBuffer >= 1 {
		return fmt.Errorf("min_liquidation_buffer must be in [0, 1), got %f", e.MinLiquidationBuffer)
	}
	if e.MaxEffectiveLeverage < 0 {
		return fmt.Errorf("max_effective_leverage must be non-negative")
	}
	if e.HardExposureCeiling > 0 && e.HardExposureCeiling < e.MaxAccountExposure {
		return fmt.Errorf("hard_exposure_ceiling (%f) below max_account_exposure (%f)",
			e.HardExposureCeiling, e.MaxAccountExposure)
	}
	return nil
}

// GroupOf returns the correlation group a symbol belongs to, if any
func (e RiskEnvelope) GroupOf(symbol string) (string, bool) {
	for group, symbols := range e.CorrelationGroups {
		for _, s := range symbols {
			if s == symbol {
				return group, true
			}
		}
	}
	return "", false
}

// AccountSnapshot is the read-only account state taken at cycle start.
// There is no process-wide ledger: the next snapshot is produced only by
// the confirmed-execution callback, which eliminates double-counting of
// in-flight capital.
type AccountSnapshot struct {
	Equity        float64   `json:"equity"`
	Balance       float64   `json:"balance"`
	TotalNotional float64   `json:"total_notional"`
	Cycle         uint64    `json:"cycle"`
	TakenAt       time.Time `json:"taken_at"`
}

// DiscardedMandate pairs a discarded mandate with the reason arbitration
// rejected it
type DiscardedMandate struct {
	Mandate Mandate       `json:"mandate"`
	Reason  DiscardReason `json:"reason"`
}

// ArbitrationResult is the sole output of arbitration for one symbol in one
// cycle. Selected == nil means NO_ACTION. The result is fully reconstructable
// from its inputs: same inputs always produce the same result.
type ArbitrationResult struct {
	Symbol    string             `json:"symbol"`
	Cycle     uint64             `json:"cycle"`
	Selected  *Mandate           `json:"selected,omitempty"`
	Discarded []DiscardedMandate `json:"discarded,omitempty"`
}

// NoAction reports whether arbitration selected nothing
func (r ArbitrationResult) NoAction() bool {
	return r.Selected == nil
}

// ExecutionIntent is the atomic, fully-specified order instruction derived
// from the selected mandate. Immutable once emitted.
type ExecutionIntent struct {
	Symbol    string       `json:"symbol"`
	Action    IntentAction `json:"action"`
	Direction Direction    `json:"direction"`
	Quantity  float64      `json:"quantity"`
	PriceType PriceType    `json:"price_type"`
	Price     float64      `json:"price,omitempty"`
	StopPrice float64      `json:"stop_price,omitempty"`
	TriggerID string       `json:"trigger_id"`
}

// ExecutionResult is a confirmed execution outcome reported by the broker
// adapter. It is the only event class that may drive lifecycle transitions.
type ExecutionResult struct {
	Symbol     string          `json:"symbol"`
	Action     IntentAction    `json:"action"`
	Status     ExecutionStatus `json:"status"`
	Direction  Direction       `json:"direction"`
	FilledQty  float64         `json:"filled_qty"`
	FillPrice  float64         `json:"fill_price"`
	StopPrice  float64         `json:"stop_price"`
	TriggerID  string          `json:"trigger_id"`
	ReportedAt time.Time       `json:"reported_at"`
}

// PrimitiveSnapshot is the per-symbol observation input: admissible numeric
// primitives only. The Annotations map exists so the admissibility contract
// is mechanically checkable: any entry at all is a contract violation,
// because interpreted labels must never reach the core.
type PrimitiveSnapshot struct {
	Symbol      string            `json:"symbol"`
	MarkPrice   float64           `json:"mark_price"`
	BestBid     float64           `json:"best_bid"`
	BestAsk     float64           `json:"best_ask"`
	TradeCount  int64             `json:"trade_count"`
	TradeRate   float64           `json:"trade_rate"`
	Volume      float64           `json:"volume"`
	TakenAt     time.Time         `json:"taken_at"`
	Annotations map[string]string `json:"annotations,omitempty"`
}
