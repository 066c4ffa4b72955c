package market

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrOutOfOrder is returned when an appended bar does not strictly
	// advance the series timeline.
	ErrOutOfOrder = errors.New("market: bar timestamp not strictly increasing")

	// ErrIndexOutOfRange is returned for index access outside [0, Len).
	ErrIndexOutOfRange = errors.New("market: bar index out of range")
)

// BarSeries is an ordered sequence of bars for a single instrument with
// strictly increasing timestamps and no duplicates. The zero value is not
// usable; construct with NewBarSeries.
type BarSeries struct {
	symbol    string
	timeframe time.Duration
	bars      []Bar
}

// NewBarSeries creates an empty series for symbol with the given bar
// timeframe (e.g. time.Hour for 1h bars).
func NewBarSeries(symbol string, timeframe time.Duration) *BarSeries {
	return &BarSeries{symbol: symbol, timeframe: timeframe}
}

// NewBarSeriesFrom builds a series from pre-sorted bars, validating every
// bar and the ordering invariant.
func NewBarSeriesFrom(symbol string, timeframe time.Duration, bars []Bar) (*BarSeries, error) {
	s := NewBarSeries(symbol, timeframe)
	for _, b := range bars {
		if err := s.Append(b); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *BarSeries) Symbol() string           { return s.symbol }
func (s *BarSeries) Timeframe() time.Duration { return s.timeframe }
func (s *BarSeries) Len() int                 { return len(s.bars) }

// Append adds a bar to the end of the series. The bar must validate and its
// timestamp must be strictly after the last bar's.
func (s *BarSeries) Append(b Bar) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if n := len(s.bars); n > 0 && !b.Time.After(s.bars[n-1].Time) {
		return fmt.Errorf("%w: %s then %s", ErrOutOfOrder,
			s.bars[n-1].Time.Format(time.RFC3339), b.Time.Format(time.RFC3339))
	}
	s.bars = append(s.bars, b)
	return nil
}

// At returns the bar used for the decision at step i. By convention the
// close of At(i) is the fill price for any action decided at that step.
func (s *BarSeries) At(i int) (Bar, error) {
	if i < 0 || i >= len(s.bars) {
		return Bar{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(s.bars))
	}
	return s.bars[i], nil
}

// VisibleUpTo returns bars [0, i] inclusive. This is the only sanctioned
// way a strategy may read history: by construction it cannot see past its
// own decision step, which rules out look-ahead bias.
//
// The returned slice aliases the series storage; callers must treat it as
// read-only.
func (s *BarSeries) VisibleUpTo(i int) []Bar {
	if i < 0 {
		return nil
	}
	if i >= len(s.bars) {
		i = len(s.bars) - 1
	}
	return s.bars[:i+1]
}

// IndexAt returns the step index for the bar at exactly t, or -1.
func (s *BarSeries) IndexAt(t time.Time) int {
	lo, hi := 0, len(s.bars)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		switch {
		case s.bars[mid].Time.Equal(t):
			return mid
		case s.bars[mid].Time.Before(t):
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return -1
}

// ResampleDaily aggregates the series into UTC calendar-day buckets:
// open of the first bar, high/low extremes, close of the last bar, summed
// volume. The trailing bucket is dropped unless the series ends exactly on
// a day boundary, so callers never see a half-built day.
func (s *BarSeries) ResampleDaily() *BarSeries {
	out := NewBarSeries(s.symbol, 24*time.Hour)
	if len(s.bars) == 0 {
		return out
	}

	flush := func(day time.Time, acc Bar, n int) {
		if n == 0 {
			return
		}
		acc.Time = day
		// Append cannot fail here: days advance strictly and the
		// aggregate preserves OHLC ordering.
		_ = out.Append(acc)
	}

	var acc Bar
	var n int
	day := s.bars[0].Time.UTC().Truncate(24 * time.Hour)
	for _, b := range s.bars {
		d := b.Time.UTC().Truncate(24 * time.Hour)
		if !d.Equal(day) {
			flush(day, acc, n)
			day = d
			n = 0
		}
		if n == 0 {
			acc = Bar{Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		} else {
			if b.High > acc.High {
				acc.High = b.High
			}
			if b.Low < acc.Low {
				acc.Low = b.Low
			}
			acc.Close = b.Close
			acc.Volume += b.Volume
		}
		n++
	}

	// Only keep the final bucket when it is complete.
	last := s.bars[len(s.bars)-1].Time.UTC()
	if s.timeframe > 0 && last.Add(s.timeframe).Equal(day.Add(24*time.Hour)) {
		flush(day, acc, n)
	}
	return out
}

// Bars returns the full backing slice. Intended for reporting and journaling
// after a run; strategies must use VisibleUpTo.
func (s *BarSeries) Bars() []Bar { return s.bars }
