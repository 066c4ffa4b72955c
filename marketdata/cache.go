package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/upquant/upquant/market"
)

// barRecord is the on-disk Parquet schema for cached candles.
type barRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

// ParquetCache stores candles as Parquet files, one file per symbol,
// timeframe, and year:
//
//	<DataDir>/<timeframe>/<SYMBOL>/<YYYY>.parquet
type ParquetCache struct {
	DataDir string
}

func NewParquetCache(dataDir string) *ParquetCache {
	return &ParquetCache{DataDir: dataDir}
}

// WriteBars merges bars into the cache, deduplicating by timestamp.
// Incoming bars win over existing ones.
func (c *ParquetCache) WriteBars(series *market.BarSeries) error {
	bars := series.Bars()
	if len(bars) == 0 {
		return nil
	}

	byYear := map[int][]barRecord{}
	for _, b := range bars {
		y := b.Time.UTC().Year()
		byYear[y] = append(byYear[y], barRecord{
			Symbol:    series.Symbol(),
			Timestamp: b.Time.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}

	for year, records := range byYear {
		path := c.barPath(series.Symbol(), series.Timeframe(), year)

		existing, _ := readParquetFile[barRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("marketdata: cache %s/%d: %w", series.Symbol(), year, err)
		}
	}
	return nil
}

// Candles serves the requested range from disk. Missing files simply
// narrow the result; an empty result is ErrDataUnavailable.
func (c *ParquetCache) Candles(_ context.Context, symbol string, timeframe time.Duration, from, to time.Time) (*market.BarSeries, error) {
	var records []barRecord
	for year := from.UTC().Year(); year <= to.UTC().Year(); year++ {
		rs, err := readParquetFile[barRecord](c.barPath(symbol, timeframe, year))
		if err != nil {
			continue
		}
		records = append(records, rs...)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })

	series := market.NewBarSeries(symbol, timeframe)
	for _, r := range records {
		t := time.UnixMilli(r.Timestamp).UTC()
		if t.Before(from) || !t.Before(to) {
			continue
		}
		b := market.Bar{Time: t, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}
		if err := series.Append(b); err != nil {
			return nil, fmt.Errorf("marketdata: cache %s: %w", symbol, err)
		}
	}

	if series.Len() == 0 {
		return nil, fmt.Errorf("%w: %s %s (cache)", ErrDataUnavailable, symbol, timeframe)
	}
	return series, nil
}

// Symbols lists cached symbols for a timeframe.
func (c *ParquetCache) Symbols(timeframe time.Duration) ([]string, error) {
	dir := filepath.Join(c.DataDir, timeframeDir(timeframe))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (c *ParquetCache) barPath(symbol string, timeframe time.Duration, year int) string {
	return filepath.Join(c.DataDir, timeframeDir(timeframe), strings.ToUpper(symbol),
		fmt.Sprintf("%d.parquet", year))
}

func timeframeDir(timeframe time.Duration) string {
	if timeframe == 24*time.Hour {
		return "daily"
	}
	return strings.ReplaceAll(timeframe.String(), ":", "_")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates by timestamp, incoming last so it wins,
// and returns the union sorted by time.
func mergeBarRecords(existing, incoming []barRecord) []barRecord {
	seen := make(map[int64]barRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]barRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	return merged
}
