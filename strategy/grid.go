package strategy

import (
	"fmt"

	"github.com/upquant/upquant/ledger"
	"github.com/upquant/upquant/market"
)

type gridEvent int

const (
	gridIdle gridEvent = iota
	gridBought
	gridSold
)

// Grid places evenly spaced price lines between a lower and upper bound.
// A close crossing down through a line buys a fixed notional; a close
// crossing up through a line sells the oldest open lot (FIFO). Each line
// fires once per direction and rearms when crossed the other way.
//
// Lot quantities come from the engine's fill notifications, so the
// strategy sells exactly what it bought net of fees.
type Grid struct {
	symbol string
	cfg    Config

	lines  []float64
	status []gridEvent
	lots   []float64 // FIFO open-lot quantities

	// Line indices awaiting a fill. A line only commits its fired
	// state once the engine confirms the fill; a refused order leaves
	// the line armed.
	pendingBuy  int
	pendingSell int

	prevClose float64
	havePrev  bool
}

// ManagesLots marks the grid as a multi-lot strategy: the engine lets
// it add to an existing position and decide on every bar.
func (s *Grid) ManagesLots() {}

// NewGrid creates a grid strategy. Bounds, line count, and the per-line
// order notional are required.
func NewGrid(symbol string, cfg Config) (*Grid, error) {
	if cfg.GridUpper <= cfg.GridLower {
		return nil, fmt.Errorf("grid: upper bound %v must exceed lower bound %v", cfg.GridUpper, cfg.GridLower)
	}
	if cfg.GridCount <= 0 {
		return nil, fmt.Errorf("grid: line count must be positive, got %d", cfg.GridCount)
	}
	if cfg.GridNotional <= 0 {
		return nil, fmt.Errorf("grid: order notional must be positive, got %v", cfg.GridNotional)
	}

	interval := (cfg.GridUpper - cfg.GridLower) / float64(cfg.GridCount+1)
	lines := make([]float64, cfg.GridCount)
	for i := range lines {
		lines[i] = cfg.GridLower + float64(i+1)*interval
	}

	return &Grid{
		symbol:      symbol,
		cfg:         cfg,
		lines:       lines,
		status:      make([]gridEvent, len(lines)),
		pendingBuy:  -1,
		pendingSell: -1,
	}, nil
}

func (s *Grid) Name() string {
	return fmt.Sprintf("grid(%d@%.0f-%.0f)", s.cfg.GridCount, s.cfg.GridLower, s.cfg.GridUpper)
}

func (s *Grid) Symbol() string { return s.symbol }

func (s *Grid) Reset() {
	for i := range s.status {
		s.status[i] = gridIdle
	}
	s.lots = s.lots[:0]
	s.pendingBuy = -1
	s.pendingSell = -1
	s.havePrev = false
}

// OnFill keeps the FIFO lot ledger in sync with executed fills and
// commits the pending line state. A sell larger than one lot (a forced
// liquidation) pops every lot it covers.
func (s *Grid) OnFill(tr ledger.Trade) {
	if tr.Symbol != s.symbol {
		return
	}
	switch tr.Side {
	case ledger.Buy:
		s.lots = append(s.lots, tr.Quantity)
		if s.pendingBuy >= 0 {
			s.status[s.pendingBuy] = gridBought
			s.pendingBuy = -1
		}
	case ledger.Sell:
		remaining := tr.Quantity
		for len(s.lots) > 0 && remaining >= s.lots[0]*(1-1e-9) {
			remaining -= s.lots[0]
			s.lots = s.lots[1:]
		}
		if s.pendingSell >= 0 {
			s.status[s.pendingSell] = gridSold
			s.pendingSell = -1
		}
	}
}

func (s *Grid) Decide(step int, history []market.Bar, view LedgerView) (Action, error) {
	if len(history) == 0 {
		return Hold(), nil
	}
	cur := history[len(history)-1].Close

	if !s.havePrev {
		s.prevClose = cur
		s.havePrev = true
		return Hold(), nil
	}
	prev := s.prevClose
	s.prevClose = cur

	// Any order still pending here was refused last bar; the line
	// stays armed.
	s.pendingBuy = -1
	s.pendingSell = -1

	action := Hold()
	for i, line := range s.lines {
		switch {
		case prev >= line && cur < line:
			// Downward cross: buy once, rearm any sold marker.
			if s.status[i] != gridBought {
				if action.Kind == KindHold && view.Cash() >= s.cfg.GridNotional {
					s.pendingBuy = i
					action = EnterNotional(s.cfg.GridNotional)
				} else if s.status[i] == gridSold {
					s.status[i] = gridIdle
				}
			}
		case prev <= line && cur > line:
			// Upward cross: sell the oldest lot once, rearm any buy marker.
			if s.status[i] != gridSold {
				if action.Kind == KindHold && len(s.lots) > 0 {
					s.pendingSell = i
					action = ExitQuantity(s.lots[0], "GridTake")
				} else if s.status[i] == gridBought {
					s.status[i] = gridIdle
				}
			}
		}
	}
	return action, nil
}
