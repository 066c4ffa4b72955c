// Package strategy defines the pluggable trading-decision contract and the
// reference strategy variants: volatility breakout, trend-follow,
// mean-reversion, grid, and predictor-driven.
package strategy

import (
	"fmt"
	"strings"

	"github.com/upquant/upquant/ledger"
	"github.com/upquant/upquant/market"
)

// LedgerView is the read-only portfolio view a strategy may consult.
type LedgerView interface {
	Cash() float64
	Position(symbol string) (ledger.Position, bool)
	OpenPositions() int
}

// Decision is the contract every strategy variant implements. The engine
// calls Decide exactly once per bar; history is the bar's visible prefix
// (market.BarSeries.VisibleUpTo), which is the only data a strategy may
// read. All strategy-internal state (entry price, stops, indicator
// buffers) is owned by the Decision instance and never inspected by the
// engine.
//
// A returned error is recovered by the engine: the step is treated as
// Hold, and repeated failures disqualify the strategy from the run.
type Decision interface {
	Name() string
	Symbol() string
	Reset()
	Decide(step int, history []market.Bar, view LedgerView) (Action, error)
}

// FillListener is implemented by strategies that need to observe their own
// fills (e.g. the grid strategy's FIFO lot bookkeeping). The engine
// notifies the listener after each fill it applied on the strategy's
// behalf.
type FillListener interface {
	OnFill(tr ledger.Trade)
}

// LotManager marks strategies that accumulate multiple lots in one
// symbol and size every entry themselves. The engine skips the
// held-position and entry-cadence gates for them; the circuit breaker
// and cash limits still apply.
type LotManager interface {
	ManagesLots()
}

// Config carries the union of per-variant parameters. Zero values select
// the documented defaults; thresholds are deliberately configuration, not
// hardcoded law.
type Config struct {
	// Breakout
	BreakoutK float64 // band multiplier, default 0.5

	// Trend-follow
	FastPeriod    int     // default 12
	SlowPeriod    int     // default 26
	SignalPeriod  int     // default 9
	ATRPeriod     int     // default 14
	ATRMultiplier float64 // trailing stop width, default 2.0

	// Mean-reversion
	BBPeriod  int     // default 20
	BBStdDev  float64 // default 2.0
	RSIPeriod int     // default 14
	EntryPctB float64 // default 0.1
	EntryRSI  float64 // default 30
	ExitPctB  float64 // default 0.9
	ExitRSI   float64 // default 70

	// Grid
	GridLower    float64
	GridUpper    float64
	GridCount    int
	GridNotional float64

	// Predictor-driven
	Predictor     Predictor
	MinHistory    int     // default 50
	BuyThreshold  float64 // default 0.65
	SellThreshold float64 // default 0.65
}

// New builds a strategy variant by name. Unknown names and invalid
// parameters fail here, before the replay loop starts.
func New(name, symbol string, cfg Config) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "breakout":
		return NewBreakout(symbol, cfg.BreakoutK), nil
	case "trend", "trend-follow":
		return NewTrendFollow(symbol, cfg), nil
	case "meanrev", "mean-reversion", "sideways":
		return NewMeanReversion(symbol, cfg), nil
	case "grid":
		return NewGrid(symbol, cfg)
	case "predictor", "ml":
		return NewPredictorDriven(symbol, cfg)
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: breakout, trend, meanrev, grid, predictor)", name)
	}
}
