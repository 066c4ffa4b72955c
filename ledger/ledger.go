// Package ledger implements the simulated portfolio: cash plus per-symbol
// positions, with fee-aware market-order fills and an append-only trade log.
// It is the backtest stand-in for the live exchange gateway; both produce
// the same Trade records so strategies are execution-mode-agnostic.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/upquant/upquant/internal/id"
)

var (
	// ErrInsufficientCash is returned when a buy's notional exceeds cash.
	ErrInsufficientCash = errors.New("ledger: insufficient cash")

	// ErrInsufficientPosition is returned when a sell's quantity exceeds
	// the held position.
	ErrInsufficientPosition = errors.New("ledger: insufficient position")

	// ErrBadOrder is returned for non-positive or non-finite order params.
	ErrBadOrder = errors.New("ledger: invalid order parameters")
)

// Side of a fill.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Trade records a single fill. Trades are append-only and never mutated.
type Trade struct {
	ID        string
	Time      time.Time
	Symbol    string
	Side      Side
	Price     float64
	Quantity  float64
	CashDelta float64
}

// Position is the held quantity for one symbol. Created on the first buy,
// removed (not zeroed) when the quantity returns to zero, so "do I hold
// this?" is a simple membership check.
type Position struct {
	Symbol     string
	Quantity   float64
	EntryPrice float64 // volume-weighted average entry
}

// Ledger holds cash and positions and executes instantaneous market-order
// fills with a proportional fee. Not safe for concurrent use; the
// backtest engine is the sole writer.
type Ledger struct {
	cash      float64
	feeRate   float64
	positions map[string]*Position
	trades    []Trade
	ids       *id.Generator
}

// New creates a ledger with the given starting cash and proportional fee
// rate (e.g. 0.0005 for 5 bps). The ID generator may be nil for callers
// that do not need deterministic replay.
func New(initialCash, feeRate float64, ids *id.Generator) (*Ledger, error) {
	if initialCash < 0 || math.IsNaN(initialCash) {
		return nil, fmt.Errorf("ledger: initial cash must be non-negative, got %v", initialCash)
	}
	if feeRate < 0 || feeRate >= 1 || math.IsNaN(feeRate) {
		return nil, fmt.Errorf("ledger: fee rate must be in [0, 1), got %v", feeRate)
	}
	if ids == nil {
		ids = id.NewGenerator(0)
	}
	return &Ledger{
		cash:      initialCash,
		feeRate:   feeRate,
		positions: make(map[string]*Position),
		ids:       ids,
	}, nil
}

func (l *Ledger) Cash() float64    { return l.cash }
func (l *Ledger) FeeRate() float64 { return l.feeRate }

// Position returns the held position for symbol, if any.
func (l *Ledger) Position(symbol string) (Position, bool) {
	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// OpenPositions returns the number of symbols currently held.
func (l *Ledger) OpenPositions() int { return len(l.positions) }

// Symbols returns the held symbols in unspecified order.
func (l *Ledger) Symbols() []string {
	out := make([]string, 0, len(l.positions))
	for s := range l.positions {
		out = append(out, s)
	}
	return out
}

// Trades returns the append-only fill log.
func (l *Ledger) Trades() []Trade { return l.trades }

// Buy spends the full notional at price; the quantity received is
// notional*(1-fee)/price. Atomic: either the full notional is debited and
// the position created/increased, or nothing happens.
func (l *Ledger) Buy(t time.Time, symbol string, notional, price float64) (Trade, error) {
	if err := checkOrder(notional, price); err != nil {
		return Trade{}, err
	}
	if notional > l.cash {
		return Trade{}, fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, notional, l.cash)
	}

	qty := notional * (1 - l.feeRate) / price

	l.cash -= notional
	p, ok := l.positions[symbol]
	if !ok {
		l.positions[symbol] = &Position{Symbol: symbol, Quantity: qty, EntryPrice: price}
	} else {
		total := p.Quantity + qty
		p.EntryPrice = (p.EntryPrice*p.Quantity + price*qty) / total
		p.Quantity = total
	}

	tr := Trade{
		ID:        l.ids.Next(t),
		Time:      t,
		Symbol:    symbol,
		Side:      Buy,
		Price:     price,
		Quantity:  qty,
		CashDelta: -notional,
	}
	l.trades = append(l.trades, tr)
	return tr, nil
}

// Sell disposes of qty at price; the proceeds qty*price*(1-fee) are
// credited to cash. If the position quantity reaches zero it is removed.
func (l *Ledger) Sell(t time.Time, symbol string, qty, price float64) (Trade, error) {
	if err := checkOrder(qty, price); err != nil {
		return Trade{}, err
	}
	p, ok := l.positions[symbol]
	if !ok || p.Quantity < qty {
		held := 0.0
		if ok {
			held = p.Quantity
		}
		return Trade{}, fmt.Errorf("%w: %s need %v, have %v", ErrInsufficientPosition, symbol, qty, held)
	}

	proceeds := qty * price * (1 - l.feeRate)
	l.cash += proceeds
	p.Quantity -= qty
	if p.Quantity <= quantityEpsilon {
		delete(l.positions, symbol)
	}

	tr := Trade{
		ID:        l.ids.Next(t),
		Time:      t,
		Symbol:    symbol,
		Side:      Sell,
		Price:     price,
		Quantity:  qty,
		CashDelta: proceeds,
	}
	l.trades = append(l.trades, tr)
	return tr, nil
}

// MarkToMarket returns net worth: cash plus each held position valued at
// the supplied mark price. Pure read, no side effects. Symbols missing
// from prices are valued at their entry price so a data gap never zeroes
// a holding.
func (l *Ledger) MarkToMarket(prices map[string]float64) float64 {
	worth := l.cash
	for sym, p := range l.positions {
		mark, ok := prices[sym]
		if !ok {
			mark = p.EntryPrice
		}
		worth += p.Quantity * mark
	}
	return worth
}

// CancelOrder is a no-op: fills are instantaneous market-order semantics,
// so there is never a pending order to cancel. Kept so the ledger satisfies
// the same execution contract as the live exchange gateway.
func (l *Ledger) CancelOrder(string) error { return nil }

// Positions smaller than this are dust from float subtraction and are
// treated as fully closed.
const quantityEpsilon = 1e-12

func checkOrder(amount, price float64) error {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: amount %v", ErrBadOrder, amount)
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: price %v", ErrBadOrder, price)
	}
	return nil
}
