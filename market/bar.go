// Package market defines the core OHLCV data types shared by every other
// component: the immutable Bar and the ordered, gap-aware BarSeries.
package market

import (
	"fmt"
	"math"
	"time"
)

// Bar represents one OHLCV observation for a fixed time bucket.
// Bars are immutable once created; they are owned by the BarSeries
// that holds them and never mutated after ingestion.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate checks the OHLC ordering invariant
// low <= min(open, close) <= max(open, close) <= high
// and rejects negative or non-finite fields.
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar %s: non-finite field", b.Time.Format(time.RFC3339))
		}
		if v < 0 {
			return fmt.Errorf("bar %s: negative field", b.Time.Format(time.RFC3339))
		}
	}
	lo := math.Min(b.Open, b.Close)
	hi := math.Max(b.Open, b.Close)
	if b.Low > lo || hi > b.High {
		return fmt.Errorf("bar %s: OHLC ordering violated (o=%v h=%v l=%v c=%v)",
			b.Time.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close)
	}
	return nil
}
