// Package risk sizes positions with a capped fractional Kelly criterion
// and halts trading through a drawdown circuit breaker. It operates on
// plain numbers and net-worth series so it stays decoupled from the
// ledger and engine packages.
package risk

// Sizing bounds. Full Kelly is notoriously aggressive on estimated
// parameters, so live sizing uses a safety fraction and a hard cap.
const (
	DefaultSafetyFraction = 0.5  // half-Kelly
	DefaultHardCap        = 0.25 // never more than a quarter of capital
)

// KellyFraction returns the Kelly-optimal fraction of capital to commit
// given a win rate W and a payoff ratio R (average win over average
// loss): W - (1-W)/R, clamped to [0, 1]. A non-positive payoff ratio
// yields 0.
func KellyFraction(winRate, payoffRatio float64) float64 {
	if payoffRatio <= 0 {
		return 0
	}
	f := winRate - (1-winRate)/payoffRatio
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Sizer converts trade statistics into a deployable capital fraction.
type Sizer struct {
	SafetyFraction float64
	HardCap        float64
}

// NewSizer returns a Sizer with the default half-Kelly safety fraction
// and hard cap. Non-positive overrides fall back to the defaults.
func NewSizer(safety, hardCap float64) Sizer {
	if safety <= 0 {
		safety = DefaultSafetyFraction
	}
	if hardCap <= 0 {
		hardCap = DefaultHardCap
	}
	return Sizer{SafetyFraction: safety, HardCap: hardCap}
}

// PositionFraction returns min(KellyFraction * safety, hardCap).
func (s Sizer) PositionFraction(winRate, payoffRatio float64) float64 {
	f := KellyFraction(winRate, payoffRatio) * s.SafetyFraction
	if f > s.HardCap {
		return s.HardCap
	}
	return f
}

// TradeStats estimates the win rate and payoff ratio from a series of
// per-trade profits. Trades with zero profit count as losses. ok is
// false when there are no trades or no losing trades to estimate a
// payoff ratio from.
func TradeStats(profits []float64) (winRate, payoffRatio float64, ok bool) {
	if len(profits) == 0 {
		return 0, 0, false
	}

	var wins, losses int
	var winSum, lossSum float64
	for _, p := range profits {
		if p > 0 {
			wins++
			winSum += p
		} else {
			losses++
			lossSum += -p
		}
	}

	winRate = float64(wins) / float64(len(profits))
	if losses == 0 || lossSum == 0 {
		return winRate, 0, false
	}
	avgWin := 0.0
	if wins > 0 {
		avgWin = winSum / float64(wins)
	}
	avgLoss := lossSum / float64(losses)
	return winRate, avgWin / avgLoss, true
}
