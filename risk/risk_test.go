package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKellyFraction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		winRate float64
		payoff  float64
		want    float64
	}{
		{"coin flip even payoff", 0.5, 1.0, 0},
		{"favourable", 0.6, 2.0, 0.4},
		{"strong edge", 0.55, 1.5, 0.25},
		{"negative edge clamps to zero", 0.3, 1.0, 0},
		{"zero payoff", 0.9, 0, 0},
		{"certain win clamps to one", 1.0, 0.5, 1.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := KellyFraction(tt.winRate, tt.payoff)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestSizerHalfKellyAndCap(t *testing.T) {
	t.Parallel()

	s := NewSizer(0, 0) // defaults

	// Kelly 0.4 halves to 0.2, under the cap.
	assert.InDelta(t, 0.2, s.PositionFraction(0.6, 2.0), 1e-12)

	// Kelly 0.8 halves to 0.4, but the cap holds it at 0.25.
	assert.InDelta(t, 0.25, s.PositionFraction(0.9, 2.0), 1e-12)

	// No edge deploys nothing.
	assert.Zero(t, s.PositionFraction(0.5, 1.0))
}

func TestTradeStats(t *testing.T) {
	t.Parallel()

	t.Run("mixed trades", func(t *testing.T) {
		t.Parallel()
		w, r, ok := TradeStats([]float64{100, -50, 200, -50, 100})
		assert.True(t, ok)
		assert.InDelta(t, 0.6, w, 1e-12)
		// avg win 400/3 vs avg loss 50
		assert.InDelta(t, (400.0/3)/50, r, 1e-12)
	})

	t.Run("no trades", func(t *testing.T) {
		t.Parallel()
		_, _, ok := TradeStats(nil)
		assert.False(t, ok)
	})

	t.Run("no losses", func(t *testing.T) {
		t.Parallel()
		w, _, ok := TradeStats([]float64{10, 20})
		assert.False(t, ok)
		assert.InDelta(t, 1.0, w, 1e-12)
	})

	t.Run("breakeven counts as loss but contributes no magnitude", func(t *testing.T) {
		t.Parallel()
		w, _, ok := TradeStats([]float64{10, 0})
		assert.False(t, ok) // zero loss sum, no payoff ratio
		assert.InDelta(t, 0.5, w, 1e-12)
	})
}

func TestGovernorLatchesOneWay(t *testing.T) {
	t.Parallel()

	g := NewGovernor(0.15)

	assert.True(t, g.Observe(1000)) // initial
	assert.True(t, g.Observe(900))  // -10%
	assert.True(t, g.Observe(860))  // -14%
	assert.False(t, g.Observe(850)) // -15%: trips
	assert.True(t, g.Tripped())

	// Recovery does not reset the latch.
	assert.False(t, g.Observe(1200))
	assert.True(t, g.Tripped())
	assert.NotEmpty(t, g.Reason())

	// Reset starts a fresh run with a new baseline.
	g.Reset()
	assert.False(t, g.Tripped())
	assert.True(t, g.Observe(500))
	assert.True(t, g.Observe(450))
	assert.False(t, g.Observe(425))
}

func TestGovernorExactBoundaryTrips(t *testing.T) {
	t.Parallel()

	g := NewGovernor(0.15)
	assert.True(t, g.Observe(100))
	assert.False(t, g.Observe(85))
}

func TestGovernorMeasuresDrawdownFromRunningPeak(t *testing.T) {
	t.Parallel()

	g := NewGovernor(0.15)

	assert.True(t, g.Observe(1000))
	assert.True(t, g.Observe(2000)) // new peak
	assert.False(t, g.Observe(1600), "20 percent off the 2000 peak must trip even above the start")
	assert.True(t, g.Tripped())
	assert.Contains(t, g.Reason(), "20.0%")

	// A decline that never breaches the limit relative to the peak
	// stays armed, even after large absolute gains evaporate partly.
	g2 := NewGovernor(0.15)
	assert.True(t, g2.Observe(1000))
	assert.True(t, g2.Observe(2000))
	assert.True(t, g2.Observe(1750)) // -12.5% from peak
	assert.False(t, g2.Tripped())
}
