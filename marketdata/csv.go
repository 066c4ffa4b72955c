package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/upquant/upquant/market"
)

// LoadCSV reads a candle file with a
// time,open,high,low,close,volume header into a BarSeries. Timestamps
// are RFC 3339 or Unix seconds.
func LoadCSV(path, symbol string, timeframe time.Duration) (*market.BarSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, symbol, timeframe)
}

// ReadCSV parses candle rows from r. The first row must be the header.
func ReadCSV(r io.Reader, symbol string, timeframe time.Duration) (*market.BarSeries, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("marketdata: csv header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, need := range []string{"time", "open", "high", "low", "close", "volume"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("marketdata: csv missing column %q", need)
		}
	}

	series := market.NewBarSeries(symbol, timeframe)
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marketdata: csv line %d: %w", line+1, err)
		}
		line++

		t, err := parseTime(row[col["time"]])
		if err != nil {
			return nil, fmt.Errorf("marketdata: csv line %d: %w", line, err)
		}

		b := market.Bar{Time: t}
		for _, fld := range []struct {
			name string
			dst  *float64
		}{
			{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low},
			{"close", &b.Close}, {"volume", &b.Volume},
		} {
			v, err := strconv.ParseFloat(row[col[fld.name]], 64)
			if err != nil {
				return nil, fmt.Errorf("marketdata: csv line %d %s: %w", line, fld.name, err)
			}
			*fld.dst = v
		}

		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("marketdata: csv line %d: %w", line, err)
		}
		if err := series.Append(b); err != nil {
			return nil, fmt.Errorf("marketdata: csv line %d: %w", line, err)
		}
	}

	if series.Len() == 0 {
		return nil, fmt.Errorf("%w: %s (csv)", ErrDataUnavailable, symbol)
	}
	return series, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
