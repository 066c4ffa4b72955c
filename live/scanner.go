package live

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/upquant/upquant/market"
	"github.com/upquant/upquant/marketdata"
	"github.com/upquant/upquant/strategy"
)

// scan is one symbol's fresh history, or the error fetching it.
type scan struct {
	symbol string
	series *market.BarSeries
	err    error
}

// Scanner fetches candle windows for many symbols concurrently. Results
// come back sorted by symbol so the caller's decision order does not
// depend on network timing.
type Scanner struct {
	Provider  marketdata.Provider
	Timeframe time.Duration
	Window    int // bars of history per fetch
}

// Fetch returns one scan per symbol, sorted by symbol name. Individual
// fetch failures are carried in the scan, not returned, so one dead
// symbol does not blind the rest.
func (s *Scanner) Fetch(ctx context.Context, symbols []string) []scan {
	out := make([]scan, len(symbols))
	var wg sync.WaitGroup

	to := time.Now().UTC().Truncate(s.Timeframe)
	from := to.Add(-time.Duration(s.Window) * s.Timeframe)

	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			series, err := s.Provider.Candles(ctx, sym, s.Timeframe, from, to)
			out[i] = scan{symbol: sym, series: series, err: err}
		}(i, sym)
	}
	wg.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].symbol < out[j].symbol })
	return out
}

// Candidate is a symbol scored by a predictor.
type Candidate struct {
	Symbol  string
	Score   float64 // buy probability
	History []market.Bar
}

// Rank fetches every symbol, scores each history with the predictor,
// and returns candidates sorted by descending buy probability with
// symbol name as the tie-break. Symbols that fail to fetch, have too
// little history, or fail prediction are dropped.
func (s *Scanner) Rank(ctx context.Context, symbols []string, p strategy.Predictor) []Candidate {
	var out []Candidate
	for _, sc := range s.Fetch(ctx, symbols) {
		if sc.err != nil {
			continue
		}
		bars := sc.series.Bars()
		if len(bars) < p.MinWindow() {
			continue
		}
		pred, err := p.Predict(bars)
		if err != nil {
			continue
		}
		out = append(out, Candidate{Symbol: sc.symbol, Score: pred.BuyProbability, History: bars})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
