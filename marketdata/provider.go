// Package marketdata acquires candle history: from the Upbit public
// REST API, from CSV exports, and through a Parquet cache that avoids
// refetching ranges already on disk.
package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/upquant/upquant/market"
)

// ErrDataUnavailable is returned when a provider has no bars for the
// requested symbol and range.
var ErrDataUnavailable = errors.New("marketdata: data unavailable")

// Provider yields candle history for a symbol. Bars come back in a
// validated, strictly ascending BarSeries covering [from, to).
type Provider interface {
	Candles(ctx context.Context, symbol string, timeframe time.Duration, from, to time.Time) (*market.BarSeries, error)
}
