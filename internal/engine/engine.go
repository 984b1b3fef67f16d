// Package engine drives the evaluation loop: each cycle snapshots account,
// positions and observation primitives, fans symbols out to a worker pool,
// arbitrates one mandate per symbol and emits at most one execution intent
// per symbol to the broker adapter. The engine owns cycle sequencing and the
// confirmed-execution callback; all per-symbol decision logic lives in the
// arbitration, invariant, intent and lifecycle modules.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
	"github.com/ksiaz/liquidation-trading-sub000/internal/events"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/arbitration"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/halt"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/intent"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/invariant"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/ledger"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/lifecycle"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/portfolio"
	"github.com/ksiaz/liquidation-trading-sub000/internal/observation"
)

// AuditSink receives every cycle's arbitration results. Implemented by the
// audit repository; nil disables the trail (tests only).
type AuditSink interface {
	InsertBatch(results []domain.ArbitrationResult) error
}

// FillSink receives every confirmed fill. Implemented by the ledger
// repository; nil disables the fill ledger.
type FillSink interface {
	RecordFill(entry ledger.Entry) error
}

// Config holds the engine's runtime parameters
type Config struct {
	Symbols      []string
	TickInterval time.Duration
	Workers      int
	Staleness    time.Duration

	// InitialEquity seeds the account snapshot when no ledger history
	// exists yet.
	InitialEquity float64
}

// Engine is the cycle runner. One instance per process; symbols are
// evaluated in parallel within a cycle, cycles themselves are strictly
// sequential.
type Engine struct {
	cfg         Config
	envelope    domain.RiskEnvelope
	tracker     *lifecycle.Tracker
	evaluator   *invariant.Evaluator
	arbiter     *arbitration.Engine
	constructor *intent.Constructor
	supervisor  *halt.Supervisor
	validator   *observation.Validator
	pool        *workerPool

	observations domain.ObservationSource
	strategies   domain.MandateSource
	broker       domain.BrokerAdapter
	audit        AuditSink
	fills        FillSink
	bus          *events.Bus
	log          zerolog.Logger

	// cycleMu serializes RunCycle against the confirmed-execution callback
	// so a cycle always sees a consistent account snapshot.
	cycleMu sync.Mutex
	account domain.AccountSnapshot
	cycle   uint64
}

// Deps bundles the collaborators the engine is wired with
type Deps struct {
	Envelope     domain.RiskEnvelope
	Tracker      *lifecycle.Tracker
	Evaluator    *invariant.Evaluator
	Arbiter      *arbitration.Engine
	Constructor  *intent.Constructor
	Supervisor   *halt.Supervisor
	Observations domain.ObservationSource
	Strategies   domain.MandateSource
	Broker       domain.BrokerAdapter
	Audit        AuditSink
	Fills        FillSink
	Bus          *events.Bus
}

// New creates the cycle engine
func New(cfg Config, deps Deps, log zerolog.Logger) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Engine{
		cfg:          cfg,
		envelope:     deps.Envelope,
		tracker:      deps.Tracker,
		evaluator:    deps.Evaluator,
		arbiter:      deps.Arbiter,
		constructor:  deps.Constructor,
		supervisor:   deps.Supervisor,
		validator:    observation.NewValidator(cfg.Staleness),
		pool:         newWorkerPool(cfg.Workers),
		observations: deps.Observations,
		strategies:   deps.Strategies,
		broker:       deps.Broker,
		audit:        deps.Audit,
		fills:        deps.Fills,
		bus:          deps.Bus,
		log:          log.With().Str("component", "engine").Logger(),
		account: domain.AccountSnapshot{
			Equity:  cfg.InitialEquity,
			Balance: cfg.InitialEquity,
			TakenAt: time.Now().UTC(),
		},
	}
}

// Account returns the current account snapshot
func (e *Engine) Account() domain.AccountSnapshot {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	return e.account
}

// Run ticks cycles until the context is cancelled
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().
		Int("symbols", len(e.cfg.Symbols)).
		Dur("tick_interval", e.cfg.TickInterval).
		Msg("Engine loop starting")

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("Engine loop stopped")
			return ctx.Err()
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// symbolInput is everything one symbol's pipeline consumes, captured before
// the cycle fans out. Workers read only their own input plus the shared
// immutable fact set.
type symbolInput struct {
	symbol      string
	snapshot    *domain.PrimitiveSnapshot
	integrityOK bool
	position    domain.Position
	account     domain.AccountSnapshot
	facts       invariant.ExposureFacts
	markPrice   float64
	halted      bool
	cycle       uint64
}

// symbolOutcome is one symbol's pipeline output
type symbolOutcome struct {
	result domain.ArbitrationResult
	intent *domain.ExecutionIntent
}

// RunCycle evaluates all configured symbols once. Exported so tests and the
// replay tooling can drive cycles without the ticker.
func (e *Engine) RunCycle(ctx context.Context) []domain.ArbitrationResult {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	e.cycle++
	cycle := e.cycle
	now := time.Now().UTC()

	snapshots, marks, integrity := e.collectSnapshots(ctx, now)
	positions := e.tracker.Positions()
	facts := portfolio.BuildFactSet(positions, marks, e.envelope)

	account := e.account
	account.Cycle = cycle
	account.TotalNotional = facts.AccountNotional()
	account.TakenAt = now
	e.account = account

	e.checkHaltConditions(facts, account, integrity)
	halted := e.supervisor.Halted()

	inputs := make([]symbolInput, 0, len(e.cfg.Symbols))
	for _, symbol := range e.cfg.Symbols {
		inputs = append(inputs, symbolInput{
			symbol:      symbol,
			snapshot:    snapshots[symbol],
			integrityOK: integrity[symbol],
			position:    e.tracker.Position(symbol),
			account:     account,
			facts:       facts.For(symbol),
			markPrice:   marks[symbol],
			halted:      halted,
			cycle:       cycle,
		})
	}

	outcomes := e.pool.run(inputs, func(in symbolInput) symbolOutcome {
		return e.evaluateSymbol(ctx, in)
	})

	results := make([]domain.ArbitrationResult, 0, len(outcomes))
	intents := 0
	for _, out := range outcomes {
		results = append(results, out.result)
		if out.intent == nil {
			continue
		}
		intents++
		if err := e.broker.Submit(ctx, *out.intent); err != nil {
			e.log.Error().Err(err).
				Str("symbol", out.intent.Symbol).
				Str("trigger", out.intent.TriggerID).
				Msg("Broker rejected intent submission")
			continue
		}
		if e.bus != nil {
			e.bus.Publish(&events.IntentEmittedData{Cycle: cycle, Intent: *out.intent})
		}
	}

	if e.audit != nil {
		if err := e.audit.InsertBatch(results); err != nil {
			e.log.Error().Err(err).Uint64("cycle", cycle).Msg("Failed to persist audit trail")
		}
	}

	if e.bus != nil {
		e.bus.Publish(&events.CycleCompletedData{
			Cycle:     cycle,
			Symbols:   len(results),
			Intents:   intents,
			NoActions: len(results) - intents,
			Halted:    halted,
		})
	}

	e.log.Debug().
		Uint64("cycle", cycle).
		Int("symbols", len(results)).
		Int("intents", intents).
		Bool("halted", halted).
		Msg("Cycle completed")

	return results
}

// collectSnapshots fetches and validates the primitive snapshot for every
// symbol. A failed or inadmissible snapshot marks the symbol's integrity
// false; its mark is omitted so exposure falls back to entry price.
func (e *Engine) collectSnapshots(ctx context.Context, now time.Time) (
	map[string]*domain.PrimitiveSnapshot,
	map[string]float64,
	map[string]bool,
) {
	snapshots := make(map[string]*domain.PrimitiveSnapshot, len(e.cfg.Symbols))
	marks := make(map[string]float64, len(e.cfg.Symbols))
	integrity := make(map[string]bool, len(e.cfg.Symbols))

	for _, symbol := range e.cfg.Symbols {
		snap, err := e.observations.Snapshot(ctx, symbol)
		if err == nil {
			err = e.validator.Validate(snap, now)
		}
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", symbol).Msg("Snapshot rejected, restricting symbol for cycle")
			integrity[symbol] = false
			continue
		}
		snapshots[symbol] = snap
		marks[symbol] = snap.MarkPrice
		integrity[symbol] = true
	}
	return snapshots, marks, integrity
}

// checkHaltConditions engages the latch on cycle-start catastrophes: a FAILED
// position, a hard exposure ceiling breach, or total observation loss while
// exposure is open.
func (e *Engine) checkHaltConditions(facts portfolio.FactSet, account domain.AccountSnapshot, integrity map[string]bool) {
	if e.tracker.HasFailed() {
		e.supervisor.Engage(halt.TriggerFailedPosition, "position in FAILED state")
		return
	}
	if e.envelope.HardExposureCeiling > 0 &&
		facts.ExposureRatio(account.Equity) > e.envelope.HardExposureCeiling {
		e.supervisor.Engage(halt.TriggerExposureCeiling, "account exposure beyond hard ceiling")
		return
	}
	if facts.AccountNotional() > 0 {
		anyOK := false
		for _, ok := range integrity {
			if ok {
				anyOK = true
				break
			}
		}
		if len(integrity) > 0 && !anyOK {
			e.supervisor.Engage(halt.TriggerDataIntegrity, "no admissible snapshots while exposure open")
		}
	}
}

// evaluateSymbol runs one symbol's pipeline: forced mandates from the
// position check, strategy proposals, arbitration, then intent construction
// for the winner. Pure apart from the strategy call; all shared state arrives
// as immutable snapshots.
func (e *Engine) evaluateSymbol(ctx context.Context, in symbolInput) symbolOutcome {
	var forced []domain.Mandate

	// A halted engine attempts best-effort exit of whatever is open.
	if in.halted && !in.position.Flat() {
		verdict := invariant.Verdict{Kind: invariant.VerdictForceExit, Reason: "halted"}
		if m, ok := invariant.ForcedMandate(in.symbol, in.cycle, in.position, verdict); ok {
			forced = append(forced, m)
		}
	} else if !in.position.Flat() {
		verdict := e.evaluator.EvaluatePosition(in.position, in.account, in.facts, in.markPrice)
		if m, ok := invariant.ForcedMandate(in.symbol, in.cycle, in.position, verdict); ok {
			forced = append(forced, m)
		}
	}

	var candidates []domain.Mandate
	if in.snapshot != nil && e.strategies != nil {
		for _, m := range e.strategies.Propose(ctx, in.symbol, *in.snapshot, in.position) {
			if err := m.Validate(); err != nil {
				e.log.Warn().Err(err).Str("symbol", in.symbol).Msg("Dropping malformed mandate")
				continue
			}
			if m.Symbol != in.symbol {
				e.log.Warn().
					Str("expected", in.symbol).
					Str("got", m.Symbol).
					Msg("Dropping mandate proposed for wrong symbol")
				continue
			}
			m.Forced = false // strategies cannot claim forced status
			candidates = append(candidates, m)
		}
	}

	result := e.arbiter.Arbitrate(arbitration.Input{
		Symbol:          in.symbol,
		Cycle:           in.cycle,
		Position:        in.position,
		Account:         in.account,
		Facts:           in.facts,
		MarkPrice:       in.markPrice,
		Candidates:      candidates,
		Forced:          forced,
		Halted:          in.halted,
		DataIntegrityOK: in.integrityOK,
	})

	out := symbolOutcome{result: result}
	if result.Selected != nil {
		out.intent = e.constructor.Build(*result.Selected, in.position, in.account, in.facts, in.markPrice)
		if out.intent == nil && result.Selected.Type.Executable() {
			// No size satisfies every cap at once. The cycle resolves to
			// no action, and the trail records the suppressed winner
			// instead of a selected mandate that produced nothing.
			suppressed := *result.Selected
			out.result.Selected = nil
			out.result.Discarded = append(out.result.Discarded, domain.DiscardedMandate{
				Mandate: suppressed,
				Reason:  domain.DiscardInvariantDenied,
			})
		}
	}
	return out
}

// OnExecutionResult is the confirmed-execution callback: the only path that
// mutates lifecycle state and the account ledger. Broker adapters call it for
// every terminal outcome, including rejections.
func (e *Engine) OnExecutionResult(result domain.ExecutionResult) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	before := e.tracker.Position(result.Symbol)
	pos, err := e.tracker.Apply(result)
	if err != nil {
		if errors.Is(err, lifecycle.ErrUnknownSymbol) {
			e.log.Warn().Err(err).Str("symbol", result.Symbol).Msg("Execution result for untracked symbol")
			return
		}
		e.log.Error().Err(err).Str("symbol", result.Symbol).Msg("Execution result failed position")
		e.supervisor.Engage(halt.TriggerFailedPosition, "illegal transition on "+result.Symbol)
		return
	}

	// Realized PnL settles into equity on reduce and close fills. Entry
	// fills do not move equity; they only convert balance into exposure.
	var pnl float64
	if result.Status == domain.ExecFilled &&
		(result.Action == domain.ActionReduce || result.Action == domain.ActionClose) {
		pnl = realizedPnL(before, result)
		e.account.Equity += pnl
		e.account.Balance = e.account.Equity
	}
	e.account.TakenAt = time.Now().UTC()

	if result.Status == domain.ExecFilled && e.fills != nil {
		entry := ledger.Entry{
			Symbol:      result.Symbol,
			Action:      result.Action,
			Direction:   result.Direction,
			Quantity:    result.FilledQty,
			Price:       result.FillPrice,
			RealizedPnL: pnl,
			EquityAfter: e.account.Equity,
			TriggerID:   result.TriggerID,
			ExecutedAt:  result.ReportedAt,
		}
		if err := e.fills.RecordFill(entry); err != nil {
			e.log.Error().Err(err).Str("symbol", result.Symbol).Msg("Failed to record fill in ledger")
		}
	}

	if e.bus != nil {
		e.bus.Publish(&events.ExecutionConfirmedData{Result: result})
		e.bus.Publish(&events.PositionChangedData{
			Symbol: pos.Symbol,
			State:  pos.State,
			Size:   pos.Size,
		})
	}
}

// realizedPnL computes the signed PnL of closing part or all of a position
// at the fill price
func realizedPnL(pos domain.Position, result domain.ExecutionResult) float64 {
	qty := result.FilledQty
	if result.Action == domain.ActionClose && qty == 0 {
		qty = pos.Size
	}
	if qty <= 0 || pos.EntryPrice <= 0 || result.FillPrice <= 0 {
		return 0
	}
	diff := result.FillPrice - pos.EntryPrice
	if pos.Direction == domain.DirectionShort {
		diff = -diff
	}
	return diff * qty
}
