package observation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ksiaz/liquidation-trading-sub000/internal/domain"
)

func validSnapshot(now time.Time) *domain.PrimitiveSnapshot {
	return &domain.PrimitiveSnapshot{
		Symbol:     "BTCUSDT",
		MarkPrice:  100,
		BestBid:    99.99,
		BestAsk:    100.01,
		TradeCount: 42,
		TradeRate:  3.5,
		Volume:     120,
		TakenAt:    now.Add(-time.Second),
	}
}

// TestValidate_AdmissibleSnapshot
func TestValidate_AdmissibleSnapshot(t *testing.T) {
	v := NewValidator(DefaultStaleness)
	now := time.Now().UTC()
	assert.NoError(t, v.Validate(validSnapshot(now), now))
}

// TestValidate_RejectsContractViolations: every inadmissible shape is an
// error, never a silent repair
func TestValidate_RejectsContractViolations(t *testing.T) {
	v := NewValidator(DefaultStaleness)
	now := time.Now().UTC()

	testCases := []struct {
		name    string
		mutate  func(*domain.PrimitiveSnapshot)
		wantErr error
	}{
		{"interpreted annotations", func(s *domain.PrimitiveSnapshot) {
			s.Annotations = map[string]string{"regime": "cascade"}
		}, ErrInadmissibleSnapshot},
		{"zero mark price", func(s *domain.PrimitiveSnapshot) { s.MarkPrice = 0 }, ErrInadmissibleSnapshot},
		{"negative mark price", func(s *domain.PrimitiveSnapshot) { s.MarkPrice = -5 }, ErrInadmissibleSnapshot},
		{"negative trade count", func(s *domain.PrimitiveSnapshot) { s.TradeCount = -1 }, ErrInadmissibleSnapshot},
		{"negative volume", func(s *domain.PrimitiveSnapshot) { s.Volume = -1 }, ErrInadmissibleSnapshot},
		{"stale", func(s *domain.PrimitiveSnapshot) { s.TakenAt = now.Add(-time.Minute) }, ErrStaleSnapshot},
		{"zero timestamp", func(s *domain.PrimitiveSnapshot) { s.TakenAt = time.Time{} }, ErrStaleSnapshot},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			snap := validSnapshot(now)
			tc.mutate(snap)
			assert.ErrorIs(t, v.Validate(snap, now), tc.wantErr)
		})
	}
}

// TestValidate_NilSnapshotIsStale
func TestValidate_NilSnapshotIsStale(t *testing.T) {
	v := NewValidator(0)
	assert.ErrorIs(t, v.Validate(nil, time.Now()), ErrStaleSnapshot)
}
