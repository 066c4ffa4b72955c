package live

import (
	"context"
	"fmt"
	"time"

	"github.com/upquant/upquant/exchange"
	"github.com/upquant/upquant/ledger"
)

// Execution places real or simulated orders and records the resulting
// fill in the trader's ledger. The trader is written against this
// interface so a dry run and a funded run differ only in wiring; both
// keep the same book the gating decisions read.
type Execution interface {
	Buy(ctx context.Context, symbol string, krwAmount, price float64) (ledger.Trade, error)
	Sell(ctx context.Context, symbol string, volume, price float64) (ledger.Trade, error)
}

// ExchangeExecution sends market orders to Upbit and mirrors each
// accepted order into the ledger at the last observed price. The
// exchange fills at its own price; the mirror keeps positions and cash
// visible to the gating and exit logic between cycles.
type ExchangeExecution struct {
	Client *exchange.Client
	Book   *ledger.Ledger
}

func (e ExchangeExecution) Buy(ctx context.Context, symbol string, krwAmount, price float64) (ledger.Trade, error) {
	if price <= 0 {
		return ledger.Trade{}, fmt.Errorf("live: no price for %s", symbol)
	}
	if _, err := e.Client.MarketBuy(ctx, symbol, krwAmount); err != nil {
		return ledger.Trade{}, err
	}
	return e.Book.Buy(time.Now().UTC(), symbol, krwAmount, price)
}

func (e ExchangeExecution) Sell(ctx context.Context, symbol string, volume, price float64) (ledger.Trade, error) {
	if price <= 0 {
		return ledger.Trade{}, fmt.Errorf("live: no price for %s", symbol)
	}
	if _, err := e.Client.MarketSell(ctx, symbol, volume); err != nil {
		return ledger.Trade{}, err
	}
	return e.Book.Sell(time.Now().UTC(), symbol, volume, price)
}

// PaperExecution fills against the simulated ledger at the last seen
// price. Used for dry runs.
type PaperExecution struct {
	Book *ledger.Ledger
}

func (e PaperExecution) Buy(_ context.Context, symbol string, krwAmount, price float64) (ledger.Trade, error) {
	if price <= 0 {
		return ledger.Trade{}, fmt.Errorf("live: no price for %s", symbol)
	}
	return e.Book.Buy(time.Now().UTC(), symbol, krwAmount, price)
}

func (e PaperExecution) Sell(_ context.Context, symbol string, volume, price float64) (ledger.Trade, error) {
	if price <= 0 {
		return ledger.Trade{}, fmt.Errorf("live: no price for %s", symbol)
	}
	return e.Book.Sell(time.Now().UTC(), symbol, volume, price)
}
