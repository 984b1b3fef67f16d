// Package paper provides a simulated broker adapter: intents are accepted
// and filled at the current mark price with no slippage model. It exists so
// the engine runs end to end without external order routing, and so replay
// produces the same fills every time.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

// ResultHandler receives every terminal execution outcome. Wired to the
// engine's confirmed-execution callback.
type ResultHandler func(domain.ExecutionResult)

// BrokerAdapter simulates execution. Results are delivered asynchronously on
// a dispatcher goroutine so submission never re-enters the engine's cycle
// lock.
type BrokerAdapter struct {
	observations domain.ObservationSource
	handler      ResultHandler
	log          zerolog.Logger

	queue chan domain.ExecutionResult
	done  chan struct{}
	once  sync.Once
}

// NewBrokerAdapter creates a paper broker and starts its result dispatcher
func NewBrokerAdapter(observations domain.ObservationSource, handler ResultHandler, log zerolog.Logger) *BrokerAdapter {
	a := &BrokerAdapter{
		observations: observations,
		handler:      handler,
		log:          log.With().Str("component", "paper_broker").Logger(),
		queue:        make(chan domain.ExecutionResult, 256),
		done:         make(chan struct{}),
	}
	go a.dispatch()
	return a
}

// Submit implements domain.BrokerAdapter. Every intent yields ACCEPTED
// followed by FILLED, so lifecycle transitions pass through their working
// states. The fill price is the symbol's current mark, falling back to the
// intent's limit price.
func (a *BrokerAdapter) Submit(ctx context.Context, intent domain.ExecutionIntent) error {
	if intent.Symbol == "" || intent.TriggerID == "" {
		return fmt.Errorf("malformed intent: missing symbol or trigger id")
	}
	if intent.Action != domain.ActionClose && intent.Quantity <= 0 {
		return fmt.Errorf("malformed intent: non-positive quantity %f", intent.Quantity)
	}

	fillPrice := a.markPrice(ctx, intent)
	if fillPrice <= 0 {
		result := domain.ExecutionResult{
			Symbol:     intent.Symbol,
			Action:     intent.Action,
			Status:     domain.ExecRejected,
			Direction:  intent.Direction,
			TriggerID:  intent.TriggerID,
			ReportedAt: time.Now().UTC(),
		}
		a.enqueue(result)
		return nil
	}

	a.enqueue(domain.ExecutionResult{
		Symbol:     intent.Symbol,
		Action:     intent.Action,
		Status:     domain.ExecAccepted,
		Direction:  intent.Direction,
		StopPrice:  intent.StopPrice,
		TriggerID:  intent.TriggerID,
		ReportedAt: time.Now().UTC(),
	})

	a.enqueue(domain.ExecutionResult{
		Symbol:     intent.Symbol,
		Action:     intent.Action,
		Status:     domain.ExecFilled,
		Direction:  intent.Direction,
		FilledQty:  intent.Quantity,
		FillPrice:  fillPrice,
		StopPrice:  intent.StopPrice,
		TriggerID:  intent.TriggerID,
		ReportedAt: time.Now().UTC(),
	})

	a.log.Debug().
		Str("symbol", intent.Symbol).
		Str("action", string(intent.Action)).
		Float64("quantity", intent.Quantity).
		Float64("fill_price", fillPrice).
		Msg("Paper fill queued")
	return nil
}

// Close stops the dispatcher after draining queued results
func (a *BrokerAdapter) Close() {
	a.once.Do(func() {
		close(a.queue)
		<-a.done
	})
}

func (a *BrokerAdapter) markPrice(ctx context.Context, intent domain.ExecutionIntent) float64 {
	if a.observations != nil {
		snap, err := a.observations.Snapshot(ctx, intent.Symbol)
		if err == nil && snap != nil && snap.MarkPrice > 0 {
			return snap.MarkPrice
		}
	}
	return intent.Price
}

func (a *BrokerAdapter) enqueue(result domain.ExecutionResult) {
	select {
	case a.queue <- result:
	default:
		a.log.Error().
			Str("symbol", result.Symbol).
			Msg("Result queue full, dropping execution result")
	}
}

func (a *BrokerAdapter) dispatch() {
	defer close(a.done)
	for result := range a.queue {
		if a.handler != nil {
			a.handler(result)
		}
	}
}
