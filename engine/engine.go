// Package engine replays bar data through strategies against a
// simulated ledger. The replay is deterministic: the same bars, config,
// and seed always produce an identical trade log.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/upquant/upquant/internal/id"
	"github.com/upquant/upquant/journal"
	"github.com/upquant/upquant/ledger"
	"github.com/upquant/upquant/market"
	"github.com/upquant/upquant/report"
	"github.com/upquant/upquant/risk"
	"github.com/upquant/upquant/strategy"
)

// Config controls one simulation run.
type Config struct {
	InitialCash float64
	FeeRate     float64

	// Seed fixes the trade ID sequence. Runs with the same seed and
	// data produce byte-identical journals.
	Seed int64

	// DecisionHour gates entries to bars closing at this UTC hour.
	// -1 disables the gate. Exits are never gated.
	DecisionHour int

	// MaxConcurrentPositions caps distinct open symbols. New entries
	// get cash / (cap - open) so later slots still receive capital.
	MaxConcurrentPositions int

	// MaxDrawdown trips the run-level circuit breaker; 0 selects the
	// risk package default.
	MaxDrawdown float64

	// MaxStrategyFaults disqualifies a strategy after this many Decide
	// errors or panics. Default 3.
	MaxStrategyFaults int

	// PeriodsPerYear annualizes the summary Sharpe ratio. Must match
	// the bar timeframe: 365 for daily, 365*24 for hourly.
	PeriodsPerYear float64
}

func (c *Config) setDefaults() {
	if c.MaxConcurrentPositions <= 0 {
		c.MaxConcurrentPositions = 1
	}
	if c.MaxStrategyFaults <= 0 {
		c.MaxStrategyFaults = 3
	}
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = 365 * 24
	}
}

// Result is everything a completed run produced.
type Result struct {
	Trades    []ledger.Trade
	Snapshots []report.Snapshot
	Summary   report.Summary

	// Disabled maps strategy names to the fault that disqualified them.
	Disabled map[string]string

	// Halted is set when the drawdown circuit breaker tripped.
	Halted bool
}

// Engine drives the replay loop.
type Engine struct {
	cfg      Config
	clock    *Clock
	book     *ledger.Ledger
	gov      *risk.Governor
	journal  journal.Journal
	log      *slog.Logger
	strats   []strategy.Decision
	faults   map[string]int
	disabled map[string]string
}

// New wires an engine. Strategies run in the given order on every tick;
// order matters for cash contention, so callers pass a stable slice.
func New(cfg Config, clock *Clock, strats []strategy.Decision, j journal.Journal, log *slog.Logger) (*Engine, error) {
	cfg.setDefaults()

	if clock == nil {
		return nil, fmt.Errorf("engine: clock is required")
	}
	if len(strats) == 0 {
		return nil, fmt.Errorf("engine: at least one strategy is required")
	}
	for _, s := range strats {
		if _, ok := clock.Series(s.Symbol()); !ok {
			return nil, fmt.Errorf("engine: no bar series for %s (strategy %s)", s.Symbol(), s.Name())
		}
	}
	if j == nil {
		j = journal.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}

	book, err := ledger.New(cfg.InitialCash, cfg.FeeRate, id.NewGenerator(cfg.Seed))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &Engine{
		cfg:      cfg,
		clock:    clock,
		book:     book,
		gov:      risk.NewGovernor(cfg.MaxDrawdown),
		journal:  j,
		log:      log,
		strats:   strats,
		faults:   map[string]int{},
		disabled: map[string]string{},
	}, nil
}

// Run replays the whole timeline. The context aborts between ticks;
// everything recorded so far is returned alongside the error.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	e.clock.Rewind()
	for _, s := range e.strats {
		s.Reset()
	}

	lastClose := map[string]float64{}
	var snaps []report.Snapshot
	haltLogged := false

	for {
		tick, ok := e.clock.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return e.result(snaps), err
		}

		for sym, i := range tick.Bars {
			s, _ := e.clock.Series(sym)
			b, err := s.At(i)
			if err != nil {
				return e.result(snaps), fmt.Errorf("engine: %s: %w", sym, err)
			}
			lastClose[sym] = b.Close
		}

		allowEntries := e.gov.Observe(e.book.MarkToMarket(lastClose))
		if !allowEntries && !haltLogged {
			e.log.Warn("circuit breaker tripped, liquidating", "reason", e.gov.Reason())
			haltLogged = true
			e.liquidateAll(tick.Time, lastClose, "CircuitBreaker")
		}

		for _, s := range e.strats {
			if _, off := e.disabled[s.Name()]; off {
				continue
			}
			step, ok := tick.Bars[s.Symbol()]
			if !ok {
				continue
			}
			e.step(s, step, tick.Time, allowEntries, lastClose)
		}

		nw := e.book.MarkToMarket(lastClose)
		snap := report.Snapshot{Time: tick.Time, Cash: e.book.Cash(), NetWorth: nw}
		snaps = append(snaps, snap)
		if err := e.journal.RecordEquity(journal.EquityRecord{Time: tick.Time, Cash: snap.Cash, NetWorth: nw}); err != nil {
			return e.result(snaps), fmt.Errorf("engine: record equity: %w", err)
		}
	}

	return e.result(snaps), nil
}

// step runs one strategy against one bar and applies at most one fill.
func (e *Engine) step(s strategy.Decision, idx int, now time.Time, allowEntries bool, lastClose map[string]float64) {
	series, _ := e.clock.Series(s.Symbol())
	history := series.VisibleUpTo(idx)

	price := lastClose[s.Symbol()]

	act, err := decide(s, idx, history, e.book)
	if err != nil {
		e.fault(s, now, price, err)
		return
	}

	switch act.Kind {
	case strategy.KindEnter:
		if !allowEntries {
			return
		}
		// Lot-managing strategies add to an existing position on their
		// own schedule; the cadence and held-position gates only apply
		// to one-position strategies.
		_, selfManaged := s.(strategy.LotManager)
		_, held := e.book.Position(s.Symbol())
		if !selfManaged {
			if e.cfg.DecisionHour >= 0 && now.UTC().Hour() != e.cfg.DecisionHour {
				return
			}
			if held {
				return
			}
		}
		open := e.book.OpenPositions()
		if !held && open >= e.cfg.MaxConcurrentPositions {
			return
		}

		notional := act.Notional
		if notional <= 0 && act.Fraction > 0 {
			notional = e.book.Cash() * act.Fraction
		}
		if notional <= 0 {
			free := e.cfg.MaxConcurrentPositions - open
			if free < 1 {
				free = 1
			}
			notional = e.book.Cash() / float64(free)
		}
		if notional > e.book.Cash() {
			notional = e.book.Cash()
		}
		if notional <= 0 {
			return
		}

		tr, err := e.book.Buy(now, s.Symbol(), notional, price)
		if err != nil {
			e.log.Debug("entry rejected", "strategy", s.Name(), "err", err)
			return
		}
		e.recordFill(s, tr, act.Reason)

	case strategy.KindExit:
		pos, held := e.book.Position(s.Symbol())
		if !held {
			return
		}
		qty := act.Quantity
		if qty <= 0 || qty > pos.Quantity {
			qty = pos.Quantity
		}
		tr, err := e.book.Sell(now, s.Symbol(), qty, price)
		if err != nil {
			e.log.Debug("exit rejected", "strategy", s.Name(), "err", err)
			return
		}
		e.recordFill(s, tr, act.Reason)
	}
}

// liquidateAll flattens every open position at the current closes,
// attributing each fill to the first strategy trading that symbol.
func (e *Engine) liquidateAll(now time.Time, lastClose map[string]float64, reason string) {
	for _, s := range e.strats {
		pos, held := e.book.Position(s.Symbol())
		if !held {
			continue
		}
		price := lastClose[s.Symbol()]
		if price <= 0 {
			continue
		}
		tr, err := e.book.Sell(now, s.Symbol(), pos.Quantity, price)
		if err != nil {
			e.log.Error("liquidation failed", "symbol", s.Symbol(), "err", err)
			continue
		}
		e.recordFill(s, tr, reason)
	}
}

// decide isolates strategy faults: a panic inside Decide becomes an
// error instead of killing the run.
func decide(s strategy.Decision, idx int, history []market.Bar, view strategy.LedgerView) (act strategy.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			act = strategy.Hold()
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Decide(idx, history, view)
}

func (e *Engine) fault(s strategy.Decision, now time.Time, price float64, err error) {
	e.faults[s.Name()]++
	n := e.faults[s.Name()]
	e.log.Error("strategy fault", "strategy", s.Name(), "faults", n, "err", err)

	if n < e.cfg.MaxStrategyFaults {
		return
	}
	e.disabled[s.Name()] = err.Error()
	e.log.Warn("strategy disqualified", "strategy", s.Name())

	// Orphaned position: flatten it rather than leave it unmanaged.
	if pos, held := e.book.Position(s.Symbol()); held {
		if tr, sellErr := e.book.Sell(now, s.Symbol(), pos.Quantity, price); sellErr == nil {
			e.recordFill(s, tr, "StrategyDisabled")
		}
	}
}

func (e *Engine) recordFill(s strategy.Decision, tr ledger.Trade, reason string) {
	if l, ok := s.(strategy.FillListener); ok {
		l.OnFill(tr)
	}
	if err := e.journal.RecordFill(journal.FillRecord{
		TradeID:  tr.ID,
		Time:     tr.Time,
		Strategy: s.Name(),
		Symbol:   tr.Symbol,
		Side:     string(tr.Side),
		Price:    tr.Price,
		Quantity: tr.Quantity,
		Reason:   reason,
	}); err != nil {
		e.log.Error("record fill", "trade", tr.ID, "err", err)
	}
}

func (e *Engine) result(snaps []report.Snapshot) Result {
	trades := e.book.Trades()
	return Result{
		Trades:    trades,
		Snapshots: snaps,
		Summary:   report.Summarize(snaps, trades, e.cfg.FeeRate, e.cfg.PeriodsPerYear),
		Disabled:  e.disabled,
		Halted:    e.gov.Tripped(),
	}
}
