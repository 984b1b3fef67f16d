package paper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

type fixedFeed struct {
	price float64
}

func (f *fixedFeed) Snapshot(_ context.Context, symbol string) (*domain.PrimitiveSnapshot, error) {
	if f.price <= 0 {
		return nil, nil
	}
	return &domain.PrimitiveSnapshot{
		Symbol:    symbol,
		MarkPrice: f.price,
		TakenAt:   time.Now().UTC(),
	}, nil
}

type resultCollector struct {
	mu      sync.Mutex
	results []domain.ExecutionResult
}

func (c *resultCollector) handle(result domain.ExecutionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

func (c *resultCollector) snapshot() []domain.ExecutionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ExecutionResult, len(c.results))
	copy(out, c.results)
	return out
}

func openIntent() domain.ExecutionIntent {
	return domain.ExecutionIntent{
		Symbol:    "BTCUSDT",
		Action:    domain.ActionOpen,
		Direction: domain.DirectionLong,
		Quantity:  2,
		PriceType: domain.PriceMarket,
		StopPrice: 95,
		TriggerID: "trigger-1",
	}
}

func TestSubmit_AcceptedThenFilled(t *testing.T) {
	collector := &resultCollector{}
	adapter := NewBrokerAdapter(&fixedFeed{price: 100}, collector.handle, zerolog.New(nil).Level(zerolog.Disabled))

	require.NoError(t, adapter.Submit(context.Background(), openIntent()))
	adapter.Close()

	results := collector.snapshot()
	require.Len(t, results, 2)

	assert.Equal(t, domain.ExecAccepted, results[0].Status)
	assert.Equal(t, "BTCUSDT", results[0].Symbol)
	assert.Equal(t, domain.ActionOpen, results[0].Action)
	assert.Equal(t, 95.0, results[0].StopPrice)
	assert.Equal(t, "trigger-1", results[0].TriggerID)

	assert.Equal(t, domain.ExecFilled, results[1].Status)
	assert.Equal(t, 2.0, results[1].FilledQty)
	assert.Equal(t, 100.0, results[1].FillPrice)
}

func TestSubmit_FillPriceFallsBackToIntentPrice(t *testing.T) {
	collector := &resultCollector{}
	adapter := NewBrokerAdapter(&fixedFeed{price: 0}, collector.handle, zerolog.New(nil).Level(zerolog.Disabled))

	intent := openIntent()
	intent.PriceType = domain.PriceLimit
	intent.Price = 98.5
	require.NoError(t, adapter.Submit(context.Background(), intent))
	adapter.Close()

	results := collector.snapshot()
	require.Len(t, results, 2)
	assert.Equal(t, 98.5, results[1].FillPrice)
}

func TestSubmit_NoPriceRejects(t *testing.T) {
	collector := &resultCollector{}
	adapter := NewBrokerAdapter(&fixedFeed{price: 0}, collector.handle, zerolog.New(nil).Level(zerolog.Disabled))

	require.NoError(t, adapter.Submit(context.Background(), openIntent()))
	adapter.Close()

	results := collector.snapshot()
	require.Len(t, results, 1)
	assert.Equal(t, domain.ExecRejected, results[0].Status)
	assert.Equal(t, "trigger-1", results[0].TriggerID)
}

func TestSubmit_MalformedIntents(t *testing.T) {
	collector := &resultCollector{}
	adapter := NewBrokerAdapter(&fixedFeed{price: 100}, collector.handle, zerolog.New(nil).Level(zerolog.Disabled))
	defer adapter.Close()

	missingSymbol := openIntent()
	missingSymbol.Symbol = ""
	assert.Error(t, adapter.Submit(context.Background(), missingSymbol))

	missingTrigger := openIntent()
	missingTrigger.TriggerID = ""
	assert.Error(t, adapter.Submit(context.Background(), missingTrigger))

	zeroQty := openIntent()
	zeroQty.Quantity = 0
	assert.Error(t, adapter.Submit(context.Background(), zeroQty))
}

func TestSubmit_CloseWithoutQuantityIsAllowed(t *testing.T) {
	collector := &resultCollector{}
	adapter := NewBrokerAdapter(&fixedFeed{price: 100}, collector.handle, zerolog.New(nil).Level(zerolog.Disabled))

	intent := domain.ExecutionIntent{
		Symbol:    "BTCUSDT",
		Action:    domain.ActionClose,
		Direction: domain.DirectionLong,
		PriceType: domain.PriceMarket,
		TriggerID: "close-1",
	}
	require.NoError(t, adapter.Submit(context.Background(), intent))
	adapter.Close()

	results := collector.snapshot()
	require.Len(t, results, 2)
	assert.Equal(t, domain.ExecAccepted, results[0].Status)
	assert.Equal(t, domain.ExecFilled, results[1].Status)
	assert.Equal(t, domain.ActionClose, results[1].Action)
}

func TestClose_Idempotent(t *testing.T) {
	adapter := NewBrokerAdapter(&fixedFeed{price: 100}, nil, zerolog.New(nil).Level(zerolog.Disabled))
	adapter.Close()
	adapter.Close()
}
