package paper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

// SimulatedFeed is an in-process observation source: a random walk around
// each symbol's base price. It exists so paper mode has an admissible
// primitive stream without an exchange connection.
type SimulatedFeed struct {
	mu     sync.Mutex
	prices map[string]float64
	rng    *rand.Rand
}

// NewSimulatedFeed seeds the walk with base prices per symbol
func NewSimulatedFeed(basePrices map[string]float64, seed int64) *SimulatedFeed {
	prices := make(map[string]float64, len(basePrices))
	for symbol, price := range basePrices {
		prices[symbol] = price
	}
	return &SimulatedFeed{
		prices: prices,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Snapshot implements domain.ObservationSource. Each call advances the
// symbol's walk one step and returns a fresh admissible snapshot.
func (f *SimulatedFeed) Snapshot(ctx context.Context, symbol string) (*domain.PrimitiveSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	price, ok := f.prices[symbol]
	if !ok || price <= 0 {
		return nil, fmt.Errorf("no simulated price for symbol %s", symbol)
	}

	// 0.1% stddev step, floored well above zero
	step := 1 + f.rng.NormFloat64()*0.001
	if step < 0.95 {
		step = 0.95
	}
	price *= step
	f.prices[symbol] = price

	spread := price * 0.0002
	return &domain.PrimitiveSnapshot{
		Symbol:     symbol,
		MarkPrice:  price,
		BestBid:    price - spread/2,
		BestAsk:    price + spread/2,
		TradeCount: int64(f.rng.Intn(500)),
		TradeRate:  f.rng.Float64() * 50,
		Volume:     f.rng.Float64() * 1000,
		TakenAt:    time.Now().UTC(),
	}, nil
}
