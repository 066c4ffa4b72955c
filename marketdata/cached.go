package marketdata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/upquant/upquant/market"
)

// CachedProvider serves candles from a ParquetCache and falls back to a
// remote provider for ranges the cache cannot cover, writing fetched
// bars back to disk.
type CachedProvider struct {
	Cache  *ParquetCache
	Remote Provider
	Log    *slog.Logger
}

func NewCachedProvider(cache *ParquetCache, remote Provider, log *slog.Logger) *CachedProvider {
	if log == nil {
		log = slog.Default()
	}
	return &CachedProvider{Cache: cache, Remote: remote, Log: log}
}

func (p *CachedProvider) Candles(ctx context.Context, symbol string, timeframe time.Duration, from, to time.Time) (*market.BarSeries, error) {
	cached, err := p.Cache.Candles(ctx, symbol, timeframe, from, to)
	if err == nil && coversRange(cached, timeframe, from, to) {
		return cached, nil
	}
	if err != nil && !errors.Is(err, ErrDataUnavailable) {
		return nil, err
	}

	p.Log.Debug("cache miss, fetching", "symbol", symbol, "timeframe", timeframe)
	fetched, err := p.Remote.Candles(ctx, symbol, timeframe, from, to)
	if err != nil {
		// A partial cache is better than nothing when the remote is
		// down, but an empty one is not.
		if cached != nil && cached.Len() > 0 {
			p.Log.Warn("remote fetch failed, serving partial cache", "symbol", symbol, "err", err)
			return cached, nil
		}
		return nil, err
	}

	if err := p.Cache.WriteBars(fetched); err != nil {
		p.Log.Warn("cache write failed", "symbol", symbol, "err", err)
	}
	return fetched, nil
}

// coversRange reports whether the series' first and last bars reach the
// edges of the request to within one timeframe.
func coversRange(s *market.BarSeries, timeframe time.Duration, from, to time.Time) bool {
	bars := s.Bars()
	if len(bars) == 0 {
		return false
	}
	first, last := bars[0].Time, bars[len(bars)-1].Time
	return !first.After(from.Add(timeframe)) && !last.Before(to.Add(-2*timeframe))
}
