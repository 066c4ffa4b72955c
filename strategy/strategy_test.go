package strategy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upquant/upquant/ledger"
	"github.com/upquant/upquant/market"
)

// fakeView is a minimal LedgerView for strategy unit tests.
type fakeView struct {
	cash      float64
	positions map[string]ledger.Position
}

func newFakeView(cash float64) *fakeView {
	return &fakeView{cash: cash, positions: map[string]ledger.Position{}}
}

func (v *fakeView) Cash() float64 { return v.cash }

func (v *fakeView) Position(symbol string) (ledger.Position, bool) {
	p, ok := v.positions[symbol]
	return p, ok
}

func (v *fakeView) OpenPositions() int { return len(v.positions) }

func (v *fakeView) hold(symbol string, qty float64) {
	v.positions[symbol] = ledger.Position{Symbol: symbol, Quantity: qty}
}

func (v *fakeView) release(symbol string) { delete(v.positions, symbol) }

func TestFactory(t *testing.T) {
	t.Run("known names", func(t *testing.T) {
		for _, name := range []string{"breakout", "trend", "meanrev"} {
			s, err := New(name, "KRW-BTC", Config{})
			require.NoError(t, err, name)
			assert.Equal(t, "KRW-BTC", s.Symbol())
		}
	})

	t.Run("unknown name fails fast", func(t *testing.T) {
		_, err := New("martingale", "KRW-BTC", Config{})
		assert.Error(t, err)
	})

	t.Run("grid requires bounds", func(t *testing.T) {
		_, err := New("grid", "KRW-BTC", Config{GridLower: 10, GridUpper: 5, GridCount: 3, GridNotional: 100})
		assert.Error(t, err)
	})
}

func TestBreakoutScenario(t *testing.T) {
	// Yesterday: high=110 low=100 close=105 so PP=105, band k=0.5 gives an
	// entry trigger at 110 and R2 at 115. Today touches 111 then retreats
	// through 105: must enter once, then stop out, and never take profit.
	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	history := []market.Bar{
		{Time: day1.Add(9 * time.Hour), Open: 102, High: 108, Low: 100, Close: 104, Volume: 1},
		{Time: day1.Add(15 * time.Hour), Open: 104, High: 110, Low: 103, Close: 105, Volume: 1},
	}

	s := NewBreakout("KRW-BTC", 0.5)
	view := newFakeView(1_000_000)

	// First bar of day two stays under the trigger.
	history = append(history, market.Bar{Time: day2.Add(1 * time.Hour), Open: 105, High: 108, Low: 104, Close: 107, Volume: 1})
	act, err := s.Decide(2, history, view)
	require.NoError(t, err)
	assert.Equal(t, KindHold, act.Kind)

	// Touches 111: breakout entry.
	history = append(history, market.Bar{Time: day2.Add(2 * time.Hour), Open: 107, High: 111, Low: 106, Close: 111, Volume: 1})
	act, err = s.Decide(3, history, view)
	require.NoError(t, err)
	require.Equal(t, KindEnter, act.Kind)
	view.hold("KRW-BTC", 1)
	s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Buy, Quantity: 1})

	// Retreats to 104: low breaches PP=105, stop-loss, not take-profit.
	history = append(history, market.Bar{Time: day2.Add(3 * time.Hour), Open: 110, High: 110, Low: 104, Close: 104, Volume: 1})
	act, err = s.Decide(4, history, view)
	require.NoError(t, err)
	require.Equal(t, KindExit, act.Kind)
	assert.Equal(t, "StopLoss", act.Reason)
	view.release("KRW-BTC")
	s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Sell, Quantity: 1})

	// Crossing the trigger again the same day must not re-enter.
	history = append(history, market.Bar{Time: day2.Add(4 * time.Hour), Open: 104, High: 112, Low: 104, Close: 112, Volume: 1})
	act, err = s.Decide(5, history, view)
	require.NoError(t, err)
	assert.Equal(t, KindHold, act.Kind)
}

func TestBreakoutStopBeatsTakeProfitSameBar(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	history := []market.Bar{
		{Time: day1.Add(12 * time.Hour), Open: 105, High: 110, Low: 100, Close: 105, Volume: 1},
	}

	s := NewBreakout("KRW-BTC", 0.5)
	view := newFakeView(1_000_000)

	history = append(history, market.Bar{Time: day2.Add(1 * time.Hour), Open: 108, High: 111, Low: 107, Close: 110, Volume: 1})
	act, err := s.Decide(1, history, view)
	require.NoError(t, err)
	require.Equal(t, KindEnter, act.Kind)
	view.hold("KRW-BTC", 1)
	s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Buy, Quantity: 1})

	// One violent bar spans both R2=115 and PP=105: stop-loss wins.
	history = append(history, market.Bar{Time: day2.Add(2 * time.Hour), Open: 110, High: 116, Low: 104, Close: 112, Volume: 1})
	act, err = s.Decide(2, history, view)
	require.NoError(t, err)
	require.Equal(t, KindExit, act.Kind)
	assert.Equal(t, "StopLoss", act.Reason)
}

func TestBreakoutRefusedEntryKeepsSignalArmed(t *testing.T) {
	// An Enter the engine never fills (gated or rejected) must not burn
	// the one-entry-per-day signal or arm the exit levels.
	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	history := []market.Bar{
		{Time: day1.Add(12 * time.Hour), Open: 105, High: 110, Low: 100, Close: 105, Volume: 1},
	}

	s := NewBreakout("KRW-BTC", 0.5)
	view := newFakeView(1_000_000)

	history = append(history, market.Bar{Time: day2.Add(1 * time.Hour), Open: 108, High: 111, Low: 107, Close: 110, Volume: 1})
	act, err := s.Decide(1, history, view)
	require.NoError(t, err)
	require.Equal(t, KindEnter, act.Kind)
	// No fill: the order was refused.

	// Still above the trigger on the next bar: it must try again.
	history = append(history, market.Bar{Time: day2.Add(2 * time.Hour), Open: 110, High: 112, Low: 109, Close: 112, Volume: 1})
	act, err = s.Decide(2, history, view)
	require.NoError(t, err)
	require.Equal(t, KindEnter, act.Kind)

	// Once a fill lands, the same-day gate applies.
	view.hold("KRW-BTC", 1)
	s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Buy, Quantity: 1})
	history = append(history, market.Bar{Time: day2.Add(3 * time.Hour), Open: 112, High: 113, Low: 103, Close: 104, Volume: 1})
	act, err = s.Decide(3, history, view)
	require.NoError(t, err)
	require.Equal(t, KindExit, act.Kind)
	view.release("KRW-BTC")
	s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Sell, Quantity: 1})

	history = append(history, market.Bar{Time: day2.Add(4 * time.Hour), Open: 104, High: 112, Low: 104, Close: 112, Volume: 1})
	act, err = s.Decide(4, history, view)
	require.NoError(t, err)
	assert.Equal(t, KindHold, act.Kind)
}

func TestGridRefusedBuyLeavesLineArmed(t *testing.T) {
	s, err := NewGrid("KRW-BTC", Config{GridLower: 90, GridUpper: 120, GridCount: 2, GridNotional: 10_000})
	require.NoError(t, err)

	view := newFakeView(1_000_000)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var history []market.Bar
	push := func(c float64) Action {
		i := len(history)
		history = append(history, market.Bar{
			Time: base.Add(time.Duration(i) * time.Hour),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1,
		})
		act, err := s.Decide(i, history, view)
		require.NoError(t, err)
		return act
	}

	assert.Equal(t, KindHold, push(105).Kind)

	// Down-cross fires a buy that is never filled.
	require.Equal(t, KindEnter, push(99).Kind)

	// Up-cross with no lots does nothing and leaves the line idle.
	assert.Equal(t, KindHold, push(101).Kind)

	// The same line fires again on the next down-cross.
	act := push(99)
	require.Equal(t, KindEnter, act.Kind)
	s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Buy, Quantity: 0.25})

	// Now that the fill landed, the up-cross sells it.
	act = push(101)
	require.Equal(t, KindExit, act.Kind)
	assert.Equal(t, 0.25, act.Quantity)
}

func TestTrendFollowTrailingStopRatchetsUpOnly(t *testing.T) {
	s := NewTrendFollow("KRW-BTC", Config{FastPeriod: 3, SlowPeriod: 6, SignalPeriod: 3, ATRPeriod: 3, ATRMultiplier: 1.0})
	view := newFakeView(1_000_000)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var history []market.Bar
	push := func(c float64) Action {
		i := len(history)
		history = append(history, market.Bar{
			Time: base.Add(time.Duration(i) * time.Hour),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1,
		})
		act, err := s.Decide(i, history, view)
		require.NoError(t, err)
		return act
	}

	// Decline then reversal to force a bullish cross with positive MACD.
	for _, c := range []float64{110, 108, 106, 104, 102, 100, 98} {
		assert.Equal(t, KindHold, push(c).Kind)
	}
	var entered bool
	for _, c := range []float64{101, 104, 107, 110, 113} {
		if act := push(c); act.Kind == KindEnter {
			entered = true
			view.hold("KRW-BTC", 1)
			s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Buy, Quantity: 1})
			break
		}
	}
	require.True(t, entered, "rally should produce an EMA-cross entry")

	stopAfterRally := s.stop
	require.Greater(t, stopAfterRally, 0.0)

	// Higher close ratchets the stop up.
	push(120)
	assert.Greater(t, s.stop, stopAfterRally)

	// A mild pullback that stays above the stop must not loosen it.
	stopBefore := s.stop
	act := push(s.stop + 2)
	assert.Equal(t, KindHold, act.Kind)
	assert.GreaterOrEqual(t, s.stop, stopBefore)

	// A breach of the stop exits.
	i := len(history)
	history = append(history, market.Bar{
		Time: base.Add(time.Duration(i) * time.Hour),
		Open: stopBefore + 1, High: stopBefore + 1, Low: stopBefore - 5, Close: stopBefore - 4, Volume: 1,
	})
	exit, err := s.Decide(i, history, view)
	require.NoError(t, err)
	require.Equal(t, KindExit, exit.Kind)
	assert.Equal(t, "TrailingStop", exit.Reason)
}

func TestMeanReversionThresholds(t *testing.T) {
	s := NewMeanReversion("KRW-BTC", Config{BBPeriod: 5, BBStdDev: 2, RSIPeriod: 5})
	view := newFakeView(1_000_000)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var history []market.Bar
	push := func(c float64) Action {
		i := len(history)
		history = append(history, market.Bar{
			Time: base.Add(time.Duration(i) * time.Hour),
			Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1,
		})
		act, err := s.Decide(i, history, view)
		require.NoError(t, err)
		return act
	}

	// Sharp sustained drop: %B pinned near 0 and RSI oversold.
	var entered bool
	for _, c := range []float64{100, 100, 100, 99, 95, 90, 85, 80, 75} {
		if act := push(c); act.Kind == KindEnter {
			entered = true
			view.hold("KRW-BTC", 1)
			s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Buy, Quantity: 1})
			break
		}
	}
	require.True(t, entered, "oversold conditions should trigger an entry")

	// Accelerating rally: overbought exit.
	var exited bool
	for _, c := range []float64{80, 82, 85, 90, 98, 112, 135} {
		if act := push(c); act.Kind == KindExit {
			exited = true
			assert.Equal(t, "Overbought", act.Reason)
			break
		}
	}
	assert.True(t, exited, "overbought conditions should trigger an exit")
}

func TestGridBuysLowSellsHighFIFO(t *testing.T) {
	// Lines between 90 and 120 with two lines: 100 and 110.
	s, err := NewGrid("KRW-BTC", Config{GridLower: 90, GridUpper: 120, GridCount: 2, GridNotional: 10_000})
	require.NoError(t, err)

	view := newFakeView(1_000_000)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	var history []market.Bar
	push := func(c float64) Action {
		i := len(history)
		history = append(history, market.Bar{
			Time: base.Add(time.Duration(i) * time.Hour),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1,
		})
		act, err := s.Decide(i, history, view)
		require.NoError(t, err)
		return act
	}

	assert.Equal(t, KindHold, push(105).Kind) // establishes prev close

	// Cross down through 100: buy.
	act := push(99)
	require.Equal(t, KindEnter, act.Kind)
	assert.Equal(t, 10_000.0, act.Notional)
	s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Buy, Quantity: 0.25})

	// No line crossed: nothing fires.
	assert.Equal(t, KindHold, push(98).Kind)

	// Cross back up through 100: the oldest lot is sold net of fees.
	act = push(101)
	require.Equal(t, KindExit, act.Kind)
	assert.Equal(t, 0.25, act.Quantity)
	assert.Equal(t, "GridTake", act.Reason)
	s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Sell, Quantity: 0.25})

	// The sold line rearms on the next downward cross and buys again.
	act = push(99)
	require.Equal(t, KindEnter, act.Kind)
	s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Buy, Quantity: 0.26})

	// A bar spanning both lines fires at most once, oldest lot first.
	act = push(111)
	require.Equal(t, KindExit, act.Kind)
	assert.Equal(t, 0.26, act.Quantity)
	s.OnFill(ledger.Trade{Symbol: "KRW-BTC", Side: ledger.Sell, Quantity: 0.26})

	// Down-cross of the upper line arms a fresh buy.
	act = push(105)
	require.Equal(t, KindEnter, act.Kind)

	// The fill never happened, so an up-cross with no open lots holds.
	assert.Equal(t, KindHold, push(111).Kind)
}

type stubPredictor struct {
	ready  bool
	window int
	pred   Prediction
	err    error
}

func (p *stubPredictor) Ready() bool    { return p.ready }
func (p *stubPredictor) MinWindow() int { return p.window }
func (p *stubPredictor) Predict([]market.Bar) (Prediction, error) {
	return p.pred, p.err
}

func TestPredictorDriven(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	history := make([]market.Bar, 10)
	for i := range history {
		history[i] = market.Bar{Time: base.Add(time.Duration(i) * time.Hour), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1}
	}

	t.Run("missing predictor fails at setup", func(t *testing.T) {
		_, err := NewPredictorDriven("KRW-BTC", Config{})
		assert.Error(t, err)
	})

	t.Run("unloaded predictor fails at setup", func(t *testing.T) {
		_, err := NewPredictorDriven("KRW-BTC", Config{Predictor: &stubPredictor{ready: false}})
		assert.Error(t, err)
	})

	t.Run("enters above threshold", func(t *testing.T) {
		p := &stubPredictor{ready: true, window: 5, pred: Prediction{BuyProbability: 0.7}}
		s, err := NewPredictorDriven("KRW-BTC", Config{Predictor: p, BuyThreshold: 0.65})
		require.NoError(t, err)

		act, err := s.Decide(9, history, newFakeView(1_000_000))
		require.NoError(t, err)
		assert.Equal(t, KindEnter, act.Kind)
	})

	t.Run("holds below threshold and window", func(t *testing.T) {
		p := &stubPredictor{ready: true, window: 5, pred: Prediction{BuyProbability: 0.6}}
		s, err := NewPredictorDriven("KRW-BTC", Config{Predictor: p, BuyThreshold: 0.65})
		require.NoError(t, err)

		act, err := s.Decide(9, history, newFakeView(1_000_000))
		require.NoError(t, err)
		assert.Equal(t, KindHold, act.Kind)

		act, err = s.Decide(2, history[:3], newFakeView(1_000_000))
		require.NoError(t, err)
		assert.Equal(t, KindHold, act.Kind)
	})

	t.Run("predict error surfaces to the engine", func(t *testing.T) {
		p := &stubPredictor{ready: true, window: 5, err: errors.New("model gone")}
		s, err := NewPredictorDriven("KRW-BTC", Config{Predictor: p})
		require.NoError(t, err)

		act, err := s.Decide(9, history, newFakeView(1_000_000))
		assert.Error(t, err)
		assert.Equal(t, KindHold, act.Kind)
	})

	t.Run("regime threshold override", func(t *testing.T) {
		p := &stubPredictor{ready: true, window: 5, pred: Prediction{BuyProbability: 0.6}}
		s, err := NewPredictorDriven("KRW-BTC", Config{Predictor: p, BuyThreshold: 0.65})
		require.NoError(t, err)

		s.SetBuyThreshold(0.55)
		act, err := s.Decide(9, history, newFakeView(1_000_000))
		require.NoError(t, err)
		assert.Equal(t, KindEnter, act.Kind)
	})
}
