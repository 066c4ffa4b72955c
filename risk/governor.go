package risk

import "fmt"

// DefaultMaxDrawdown is the running drawdown at which the circuit
// breaker trips.
const DefaultMaxDrawdown = 0.15

// Governor is a one-way drawdown circuit breaker. It observes the
// net-worth series of a run and latches once net worth falls more than
// MaxDrawdown below the running peak. A tripped governor never resets
// within the run, even if net worth recovers: resumption is a human
// decision, not an automatic one.
type Governor struct {
	maxDrawdown float64

	peak      float64
	tripped   bool
	trippedAt float64
	peakAt    float64
}

// NewGovernor creates a circuit breaker tripping at the given drawdown
// fraction from the running peak. Non-positive values select the
// default.
func NewGovernor(maxDrawdown float64) *Governor {
	if maxDrawdown <= 0 {
		maxDrawdown = DefaultMaxDrawdown
	}
	return &Governor{maxDrawdown: maxDrawdown}
}

// Observe feeds the next net-worth sample and reports whether trading
// is still allowed. The peak ratchets up with every new high; the trip
// condition compares against the peak, not the starting value, so a run
// that doubles and then gives back a fifth still trips.
func (g *Governor) Observe(netWorth float64) bool {
	if netWorth > g.peak {
		g.peak = netWorth
	}

	if g.tripped {
		return false
	}
	if g.peak > 0 && netWorth <= g.peak*(1-g.maxDrawdown) {
		g.tripped = true
		g.trippedAt = netWorth
		g.peakAt = g.peak
		return false
	}
	return true
}

// Tripped reports whether the breaker has latched.
func (g *Governor) Tripped() bool { return g.tripped }

// Reason describes the latched state for logs and reports.
func (g *Governor) Reason() string {
	if !g.tripped {
		return ""
	}
	dd := 0.0
	if g.peakAt > 0 {
		dd = 1 - g.trippedAt/g.peakAt
	}
	return fmt.Sprintf("drawdown %.1f%% from peak breached %.1f%% limit", dd*100, g.maxDrawdown*100)
}

// Reset clears the latch for a new run. Engines call this between runs,
// never inside one.
func (g *Governor) Reset() {
	g.peak = 0
	g.tripped = false
	g.trippedAt = 0
	g.peakAt = 0
}
