package strategy

import (
	"fmt"

	"github.com/upquant/upquant/indicators"
	"github.com/upquant/upquant/ledger"
	"github.com/upquant/upquant/market"
)

// TrendFollow enters on a fast/slow EMA crossover confirmed by a positive
// MACD histogram, and exits on an ATR-scaled trailing stop that ratchets
// upward with the peak price and never loosens.
type TrendFollow struct {
	symbol string
	cfg    Config

	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA
	macd *indicators.MACD
	atr  *indicators.ATR

	wasAbove bool
	haveDiff bool

	entered bool
	peak    float64
	stop    float64

	pending     bool
	pendingPeak float64
	pendingStop float64
}

// NewTrendFollow creates a trend-following strategy with the config's EMA,
// MACD, and ATR parameters (defaults 12/26, 12/26/9, 14, 2x ATR).
func NewTrendFollow(symbol string, cfg Config) *TrendFollow {
	if cfg.FastPeriod <= 0 {
		cfg.FastPeriod = 12
	}
	if cfg.SlowPeriod <= 0 {
		cfg.SlowPeriod = 26
	}
	if cfg.SignalPeriod <= 0 {
		cfg.SignalPeriod = 9
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	if cfg.ATRMultiplier <= 0 {
		cfg.ATRMultiplier = 2.0
	}
	return &TrendFollow{
		symbol: symbol,
		cfg:    cfg,
		fast:   indicators.NewEMA(cfg.FastPeriod),
		slow:   indicators.NewEMA(cfg.SlowPeriod),
		macd:   indicators.NewMACD(cfg.FastPeriod, cfg.SlowPeriod, cfg.SignalPeriod),
		atr:    indicators.NewATR(cfg.ATRPeriod),
	}
}

func (s *TrendFollow) Name() string {
	return fmt.Sprintf("trend(%d/%d)", s.cfg.FastPeriod, s.cfg.SlowPeriod)
}

func (s *TrendFollow) Symbol() string { return s.symbol }

func (s *TrendFollow) Reset() {
	s.fast.Reset()
	s.slow.Reset()
	s.macd.Reset()
	s.atr.Reset()
	s.wasAbove = false
	s.haveDiff = false
	s.entered = false
	s.peak = 0
	s.stop = 0
	s.pending = false
	s.pendingPeak = 0
	s.pendingStop = 0
}

// OnFill arms the trailing stop once the entry order actually fills. A
// refused entry leaves the crossover free to fire again on the next bar.
func (s *TrendFollow) OnFill(tr ledger.Trade) {
	if tr.Symbol != s.symbol {
		return
	}
	switch tr.Side {
	case ledger.Buy:
		if s.pending {
			s.entered = true
			s.peak = s.pendingPeak
			s.stop = s.pendingStop
			s.pending = false
		}
	case ledger.Sell:
		s.entered = false
	}
}

func (s *TrendFollow) Decide(step int, history []market.Bar, view LedgerView) (Action, error) {
	if len(history) == 0 {
		return Hold(), nil
	}
	cur := history[len(history)-1]
	s.pending = false

	s.fast.Update(cur)
	s.slow.Update(cur)
	s.macd.Update(cur)
	s.atr.Update(cur)

	if _, held := view.Position(s.symbol); held && s.entered {
		if cur.Close > s.peak {
			s.peak = cur.Close
		}
		if s.atr.Ready() && cur.Close > 0 {
			atrPct := s.atr.Value() / cur.Close
			if candidate := s.peak * (1 - s.cfg.ATRMultiplier*atrPct); candidate > s.stop {
				s.stop = candidate
			}
		}
		if s.stop > 0 && cur.Low <= s.stop {
			return Exit("TrailingStop"), nil
		}
		return Hold(), nil
	}

	if !s.fast.Ready() || !s.slow.Ready() || !s.macd.Ready() || !s.atr.Ready() {
		return Hold(), nil
	}

	above := s.fast.Value() > s.slow.Value()
	crossed := above && s.haveDiff && !s.wasAbove
	s.wasAbove = above
	s.haveDiff = true

	if crossed && s.macd.Value() > 0 {
		s.pending = true
		s.pendingPeak = cur.Close
		atrPct := s.atr.Value() / cur.Close
		s.pendingStop = s.pendingPeak * (1 - s.cfg.ATRMultiplier*atrPct)
		return Enter(), nil
	}
	return Hold(), nil
}
