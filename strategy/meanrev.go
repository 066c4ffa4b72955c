package strategy

import (
	"fmt"

	"github.com/upquant/upquant/indicators"
	"github.com/upquant/upquant/ledger"
	"github.com/upquant/upquant/market"
)

// MeanReversion trades range-bound regimes: it enters when Bollinger %B
// and RSI both signal oversold and exits symmetrically on the overbought
// side.
type MeanReversion struct {
	symbol string
	cfg    Config

	bb  *indicators.Bollinger
	rsi *indicators.RSI

	entered bool
}

// NewMeanReversion creates a mean-reversion strategy with the config's
// Bollinger and RSI parameters (defaults 20/2.0 and 14, thresholds
// 0.1/30 in and 0.9/70 out).
func NewMeanReversion(symbol string, cfg Config) *MeanReversion {
	if cfg.BBPeriod <= 0 {
		cfg.BBPeriod = 20
	}
	if cfg.BBStdDev <= 0 {
		cfg.BBStdDev = 2.0
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = 14
	}
	if cfg.EntryPctB <= 0 {
		cfg.EntryPctB = 0.1
	}
	if cfg.EntryRSI <= 0 {
		cfg.EntryRSI = 30
	}
	if cfg.ExitPctB <= 0 {
		cfg.ExitPctB = 0.9
	}
	if cfg.ExitRSI <= 0 {
		cfg.ExitRSI = 70
	}
	return &MeanReversion{
		symbol: symbol,
		cfg:    cfg,
		bb:     indicators.NewBollinger(cfg.BBPeriod, cfg.BBStdDev),
		rsi:    indicators.NewRSI(cfg.RSIPeriod),
	}
}

func (s *MeanReversion) Name() string {
	return fmt.Sprintf("meanrev(bb=%d,rsi=%d)", s.cfg.BBPeriod, s.cfg.RSIPeriod)
}

func (s *MeanReversion) Symbol() string { return s.symbol }

func (s *MeanReversion) Reset() {
	s.bb.Reset()
	s.rsi.Reset()
	s.entered = false
}

// OnFill tracks whether this strategy's own entry actually filled, so an
// order the book refused does not leave it believing it holds a lot.
func (s *MeanReversion) OnFill(tr ledger.Trade) {
	if tr.Symbol != s.symbol {
		return
	}
	switch tr.Side {
	case ledger.Buy:
		s.entered = true
	case ledger.Sell:
		s.entered = false
	}
}

func (s *MeanReversion) Decide(step int, history []market.Bar, view LedgerView) (Action, error) {
	if len(history) == 0 {
		return Hold(), nil
	}
	cur := history[len(history)-1]

	s.bb.Update(cur)
	s.rsi.Update(cur)

	if !s.bb.Ready() || !s.rsi.Ready() {
		return Hold(), nil
	}

	pctB := s.bb.Value()
	rsi := s.rsi.Value()

	if _, held := view.Position(s.symbol); held && s.entered {
		if pctB > s.cfg.ExitPctB && rsi > s.cfg.ExitRSI {
			return Exit("Overbought"), nil
		}
		return Hold(), nil
	}

	if pctB < s.cfg.EntryPctB && rsi < s.cfg.EntryRSI {
		return Enter(), nil
	}
	return Hold(), nil
}
