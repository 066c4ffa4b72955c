// Package live runs strategies against fresh market data on a fixed
// interval, executing through an Execution backend. The decision logic
// is the bar-replay semantics reused on the newest bars; only the
// clock and the order path differ from a backtest.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/upquant/upquant/exchange"
	"github.com/upquant/upquant/journal"
	"github.com/upquant/upquant/ledger"
	"github.com/upquant/upquant/market"
	"github.com/upquant/upquant/risk"
	"github.com/upquant/upquant/strategy"
)

// Options configures a live trader.
type Options struct {
	// Interval between scan-and-decide cycles.
	Interval time.Duration

	// DecisionHour gates entries as in backtests; -1 disables.
	DecisionHour int

	MaxConcurrentPositions int
	MaxDrawdown            float64

	// LiquidateOnExit sells every open position during shutdown.
	LiquidateOnExit bool

	// Notifier receives fill and circuit-breaker events. Optional;
	// notification failures are logged and never block a decision.
	Notifier exchange.Notifier
}

func (o *Options) setDefaults() {
	if o.Interval <= 0 {
		o.Interval = time.Hour
	}
	if o.MaxConcurrentPositions <= 0 {
		o.MaxConcurrentPositions = 1
	}
}

// Trader owns the live loop. Positions and cash are tracked in the
// ledger regardless of backend; with ExchangeExecution the ledger
// mirrors what the exchange reports.
type Trader struct {
	opts    Options
	scanner *Scanner
	exec    Execution
	book    *ledger.Ledger
	gov     *risk.Governor
	journal journal.Journal
	log     *slog.Logger
	strats  []strategy.Decision

	lastPrice    map[string]float64
	haltNotified bool
}

// notify forwards an event to the configured notifier, if any.
func (t *Trader) notify(event, message string) {
	if t.opts.Notifier == nil {
		return
	}
	if err := t.opts.Notifier.Notify(event, message); err != nil {
		t.log.Warn("notify failed", "event", event, "err", err)
	}
}

// NewTrader wires a live trader. Strategy order is preserved for cash
// contention, mirroring the backtest engine.
func NewTrader(opts Options, scanner *Scanner, exec Execution, book *ledger.Ledger, strats []strategy.Decision, j journal.Journal, log *slog.Logger) (*Trader, error) {
	opts.setDefaults()

	if scanner == nil || exec == nil || book == nil {
		return nil, fmt.Errorf("live: scanner, execution, and ledger are required")
	}
	if len(strats) == 0 {
		return nil, fmt.Errorf("live: at least one strategy is required")
	}
	if j == nil {
		j = journal.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Trader{
		opts:      opts,
		scanner:   scanner,
		exec:      exec,
		book:      book,
		gov:       risk.NewGovernor(opts.MaxDrawdown),
		journal:   j,
		log:       log,
		strats:    strats,
		lastPrice: map[string]float64{},
	}, nil
}

// Run loops until the context is cancelled, then shuts down: entries
// stop, open positions are optionally liquidated, and the journal is
// flushed. The returned error is the shutdown error, if any.
func (t *Trader) Run(ctx context.Context) error {
	t.log.Info("live trader starting",
		"interval", t.opts.Interval,
		"strategies", len(t.strats),
		"liquidate_on_exit", t.opts.LiquidateOnExit)

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	// First cycle immediately rather than one interval in.
	t.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return t.shutdown()
		case <-ticker.C:
			t.cycle(ctx)
		}
	}
}

// cycle is one scan-decide-execute pass.
func (t *Trader) cycle(ctx context.Context) {
	symbols := make([]string, 0, len(t.strats))
	seen := map[string]bool{}
	for _, s := range t.strats {
		if !seen[s.Symbol()] {
			seen[s.Symbol()] = true
			symbols = append(symbols, s.Symbol())
		}
	}

	scans := t.scanner.Fetch(ctx, symbols)
	histories := map[string][]market.Bar{}
	for _, sc := range scans {
		if sc.err != nil {
			t.log.Warn("scan failed", "symbol", sc.symbol, "err", sc.err)
			continue
		}
		bars := sc.series.Bars()
		if len(bars) == 0 {
			continue
		}
		histories[sc.symbol] = bars
		t.lastPrice[sc.symbol] = bars[len(bars)-1].Close
	}
	if len(histories) == 0 {
		return
	}

	allowEntries := t.gov.Observe(t.book.MarkToMarket(t.lastPrice))
	if !allowEntries {
		t.log.Warn("circuit breaker active, entries halted", "reason", t.gov.Reason())
		if !t.haltNotified {
			t.haltNotified = true
			t.notify("circuit_breaker", t.gov.Reason())
			t.liquidateAll(ctx, "CircuitBreaker")
		}
	}

	now := time.Now().UTC()
	for _, s := range t.strats {
		history, ok := histories[s.Symbol()]
		if !ok {
			continue
		}
		t.step(ctx, s, history, now, allowEntries)
	}

	nw := t.book.MarkToMarket(t.lastPrice)
	if err := t.journal.RecordEquity(journal.EquityRecord{Time: now, Cash: t.book.Cash(), NetWorth: nw}); err != nil {
		t.log.Error("record equity", "err", err)
	}
}

func (t *Trader) step(ctx context.Context, s strategy.Decision, history []market.Bar, now time.Time, allowEntries bool) {
	act, err := s.Decide(len(history)-1, history, t.book)
	if err != nil {
		t.log.Error("strategy fault", "strategy", s.Name(), "err", err)
		return
	}

	price := t.lastPrice[s.Symbol()]

	switch act.Kind {
	case strategy.KindEnter:
		if !allowEntries {
			return
		}
		_, selfManaged := s.(strategy.LotManager)
		_, held := t.book.Position(s.Symbol())
		if !selfManaged {
			if t.opts.DecisionHour >= 0 && now.Hour() != t.opts.DecisionHour {
				return
			}
			if held {
				return
			}
		}
		open := t.book.OpenPositions()
		if !held && open >= t.opts.MaxConcurrentPositions {
			return
		}

		notional := act.Notional
		if notional <= 0 && act.Fraction > 0 {
			notional = t.book.Cash() * act.Fraction
		}
		if notional <= 0 {
			free := t.opts.MaxConcurrentPositions - open
			if free < 1 {
				free = 1
			}
			notional = t.book.Cash() / float64(free)
		}
		if notional <= 0 {
			return
		}

		tr, err := t.exec.Buy(ctx, s.Symbol(), notional, price)
		if err != nil {
			t.log.Error("buy failed", "strategy", s.Name(), "symbol", s.Symbol(), "err", err)
			return
		}
		t.recordFill(s, tr, act.Reason)
		t.log.Info("entered", "strategy", s.Name(), "symbol", s.Symbol(), "notional", notional, "reason", act.Reason)
		t.notify("entry", fmt.Sprintf("%s bought %s for %.0f KRW", s.Name(), s.Symbol(), notional))

	case strategy.KindExit:
		pos, held := t.book.Position(s.Symbol())
		if !held {
			return
		}
		qty := act.Quantity
		if qty <= 0 || qty > pos.Quantity {
			qty = pos.Quantity
		}
		tr, err := t.exec.Sell(ctx, s.Symbol(), qty, price)
		if err != nil {
			t.log.Error("sell failed", "strategy", s.Name(), "symbol", s.Symbol(), "err", err)
			return
		}
		t.recordFill(s, tr, act.Reason)
		t.log.Info("exited", "strategy", s.Name(), "symbol", s.Symbol(), "quantity", qty, "reason", act.Reason)
		t.notify("exit", fmt.Sprintf("%s sold %.8f %s: %s", s.Name(), qty, s.Symbol(), act.Reason))
	}
}

// recordFill fans an executed fill out to the acting strategy and the
// journal, matching the backtest engine's bookkeeping.
func (t *Trader) recordFill(s strategy.Decision, tr ledger.Trade, reason string) {
	if l, ok := s.(strategy.FillListener); ok {
		l.OnFill(tr)
	}
	if err := t.journal.RecordFill(journal.FillRecord{
		TradeID:  tr.ID,
		Time:     tr.Time,
		Strategy: s.Name(),
		Symbol:   tr.Symbol,
		Side:     string(tr.Side),
		Price:    tr.Price,
		Quantity: tr.Quantity,
		Reason:   reason,
	}); err != nil {
		t.log.Error("record fill", "trade", tr.ID, "err", err)
	}
}

// liquidateAll sells every open position at the last observed price,
// attributing each fill to the first strategy trading that symbol.
func (t *Trader) liquidateAll(ctx context.Context, reason string) {
	for _, s := range t.strats {
		pos, held := t.book.Position(s.Symbol())
		if !held {
			continue
		}
		tr, err := t.exec.Sell(ctx, s.Symbol(), pos.Quantity, t.lastPrice[s.Symbol()])
		if err != nil {
			t.log.Error("liquidation failed", "symbol", s.Symbol(), "err", err)
			continue
		}
		t.recordFill(s, tr, reason)
		t.log.Info("liquidated", "symbol", s.Symbol(), "quantity", pos.Quantity, "reason", reason)
	}
}

// shutdown stops trading and flushes state. Liquidation uses a fresh
// context: the run context is already cancelled.
func (t *Trader) shutdown() error {
	t.log.Info("live trader stopping")

	var firstErr error
	if t.opts.LiquidateOnExit {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, s := range t.strats {
			pos, held := t.book.Position(s.Symbol())
			if !held {
				continue
			}
			tr, err := t.exec.Sell(ctx, s.Symbol(), pos.Quantity, t.lastPrice[s.Symbol()])
			if err != nil {
				t.log.Error("liquidation failed", "symbol", s.Symbol(), "err", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			t.recordFill(s, tr, "Shutdown")
			t.log.Info("liquidated", "symbol", s.Symbol(), "quantity", pos.Quantity)
			t.notify("liquidation", fmt.Sprintf("sold %.8f %s on shutdown", pos.Quantity, s.Symbol()))
		}
	}

	if err := t.journal.Close(); err != nil {
		t.log.Error("journal close", "err", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
