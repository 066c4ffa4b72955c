package strategy

import (
	"fmt"
	"time"

	"github.com/upquant/upquant/ledger"
	"github.com/upquant/upquant/market"
)

// Breakout implements the volatility breakout variant. From the prior UTC
// day's range it derives a pivot PP = (H+L+C)/3 and an entry trigger
// PP + k*(H-L); once entered, it takes profit at R2 = PP + (H-L) and stops
// out at PP. When both trigger on the same bar the stop wins: capital
// preservation over profit.
type Breakout struct {
	symbol string
	k      float64

	entered   bool
	pp        float64
	r2        float64
	signalDay time.Time // last day a fill landed; blocks same-day re-entry

	// Levels staged by Decide, committed by OnFill once the order fills.
	pending    bool
	pendingPP  float64
	pendingR2  float64
	pendingDay time.Time
}

// NewBreakout creates a breakout strategy. k is the band multiplier on the
// prior day's range; 0.5 is the conventional default.
func NewBreakout(symbol string, k float64) *Breakout {
	if k <= 0 {
		k = 0.5
	}
	return &Breakout{symbol: symbol, k: k}
}

func (s *Breakout) Name() string   { return fmt.Sprintf("breakout(k=%.2f)", s.k) }
func (s *Breakout) Symbol() string { return s.symbol }

func (s *Breakout) Reset() {
	s.entered = false
	s.pp = 0
	s.r2 = 0
	s.signalDay = time.Time{}
	s.pending = false
	s.pendingPP = 0
	s.pendingR2 = 0
	s.pendingDay = time.Time{}
}

// OnFill commits the staged entry levels once the order actually fills.
// An entry the book refused leaves the signal unburned, so the strategy
// may try again on the next bar.
func (s *Breakout) OnFill(tr ledger.Trade) {
	if tr.Symbol != s.symbol {
		return
	}
	switch tr.Side {
	case ledger.Buy:
		if s.pending {
			s.entered = true
			s.pp = s.pendingPP
			s.r2 = s.pendingR2
			s.signalDay = s.pendingDay
			s.pending = false
		}
	case ledger.Sell:
		s.entered = false
	}
}

func (s *Breakout) Decide(step int, history []market.Bar, view LedgerView) (Action, error) {
	if len(history) == 0 {
		return Hold(), nil
	}
	cur := history[len(history)-1]
	s.pending = false

	if _, held := view.Position(s.symbol); held && s.entered {
		// Stop-loss takes precedence over take-profit on the same bar.
		if cur.Low <= s.pp {
			return Exit("StopLoss"), nil
		}
		if cur.High >= s.r2 {
			return Exit("TakeProfit"), nil
		}
		return Hold(), nil
	}

	day := cur.Time.UTC().Truncate(24 * time.Hour)
	if day.Equal(s.signalDay) {
		// One entry per day: a stopped-out breakout does not rearm
		// until the next day's levels exist.
		return Hold(), nil
	}

	h, l, c, ok := prevDayRange(history)
	if !ok {
		return Hold(), nil
	}

	pp := (h + l + c) / 3
	trigger := pp + s.k*(h-l)

	if cur.High >= trigger {
		s.pending = true
		s.pendingPP = pp
		s.pendingR2 = pp + (h - l)
		s.pendingDay = day
		return Enter(), nil
	}
	return Hold(), nil
}

// prevDayRange aggregates the high, low, and closing price of the most
// recent UTC calendar day before the current bar's day that has data.
func prevDayRange(history []market.Bar) (h, l, c float64, ok bool) {
	today := history[len(history)-1].Time.UTC().Truncate(24 * time.Hour)

	i := len(history) - 1
	for i >= 0 && history[i].Time.UTC().Truncate(24*time.Hour).Equal(today) {
		i--
	}
	if i < 0 {
		return 0, 0, 0, false
	}

	day := history[i].Time.UTC().Truncate(24 * time.Hour)
	c = history[i].Close
	h = history[i].High
	l = history[i].Low
	for i--; i >= 0 && history[i].Time.UTC().Truncate(24*time.Hour).Equal(day); i-- {
		if history[i].High > h {
			h = history[i].High
		}
		if history[i].Low < l {
			l = history[i].Low
		}
	}
	return h, l, c, true
}
