package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/upquant/upquant/market"
)

const upbitBaseURL = "https://api.upbit.com"

// upbitPageSize is the API maximum per candle request.
const upbitPageSize = 200

// UpbitProvider fetches candles from the Upbit public REST API. Candle
// endpoints need no authentication.
type UpbitProvider struct {
	BaseURL string
	HTTP    *http.Client

	// Throttle sleeps between page requests to respect the public
	// rate limit. Zero disables it.
	Throttle time.Duration
}

// NewUpbit returns a provider against the production Upbit API.
func NewUpbit() *UpbitProvider {
	return &UpbitProvider{BaseURL: upbitBaseURL, Throttle: 110 * time.Millisecond}
}

type upbitCandle struct {
	Market       string  `json:"market"`
	DateTimeUTC  string  `json:"candle_date_time_utc"`
	OpeningPrice float64 `json:"opening_price"`
	HighPrice    float64 `json:"high_price"`
	LowPrice     float64 `json:"low_price"`
	TradePrice   float64 `json:"trade_price"`
	AccVolume    float64 `json:"candle_acc_trade_volume"`
}

// Candles pages backwards through the candle endpoint until the range
// is covered, then returns the bars oldest first. Pages overlap at
// boundaries, so duplicates are dropped on the way.
func (p *UpbitProvider) Candles(ctx context.Context, symbol string, timeframe time.Duration, from, to time.Time) (*market.BarSeries, error) {
	path, err := candlePath(timeframe)
	if err != nil {
		return nil, err
	}

	seen := map[time.Time]upbitCandle{}
	cursor := to.UTC()

	for {
		page, err := p.fetchPage(ctx, path, symbol, cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		oldest := cursor
		for _, c := range page {
			t, err := time.Parse("2006-01-02T15:04:05", c.DateTimeUTC)
			if err != nil {
				return nil, fmt.Errorf("marketdata: upbit candle time %q: %w", c.DateTimeUTC, err)
			}
			t = t.UTC()
			if t.Before(oldest) {
				oldest = t
			}
			if !t.Before(from) && t.Before(to) {
				seen[t] = c
			}
		}

		if !oldest.After(from) || len(page) < upbitPageSize {
			break
		}
		cursor = oldest

		if p.Throttle > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.Throttle):
			}
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrDataUnavailable, symbol, timeframe)
	}

	times := make([]time.Time, 0, len(seen))
	for t := range seen {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	series := market.NewBarSeries(symbol, timeframe)
	for _, t := range times {
		c := seen[t]
		b := market.Bar{
			Time:   t,
			Open:   c.OpeningPrice,
			High:   c.HighPrice,
			Low:    c.LowPrice,
			Close:  c.TradePrice,
			Volume: c.AccVolume,
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("marketdata: upbit bar at %s: %w", t, err)
		}
		if err := series.Append(b); err != nil {
			return nil, fmt.Errorf("marketdata: %w", err)
		}
	}
	return series, nil
}

func (p *UpbitProvider) fetchPage(ctx context.Context, path, symbol string, to time.Time) ([]upbitCandle, error) {
	base := p.BaseURL
	if base == "" {
		base = upbitBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	u.Path = path

	q := u.Query()
	q.Set("market", symbol)
	q.Set("count", strconv.Itoa(upbitPageSize))
	q.Set("to", to.UTC().Format("2006-01-02T15:04:05Z"))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketdata: upbit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("marketdata: upbit http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var page []upbitCandle
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("marketdata: upbit decode: %w", err)
	}
	return page, nil
}

// candlePath maps a bar timeframe to the Upbit candle endpoint.
func candlePath(timeframe time.Duration) (string, error) {
	if timeframe == 24*time.Hour {
		return "/v1/candles/days", nil
	}
	if timeframe >= time.Minute && timeframe < 24*time.Hour && timeframe%time.Minute == 0 {
		unit := int(timeframe / time.Minute)
		switch unit {
		case 1, 3, 5, 10, 15, 30, 60, 240:
			return "/v1/candles/minutes/" + strconv.Itoa(unit), nil
		}
	}
	return "", fmt.Errorf("marketdata: unsupported timeframe %s", timeframe)
}
