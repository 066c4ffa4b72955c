package indicators

import (
	"fmt"
	"math"

	"github.com/upquant/upquant/market"
)

// Bollinger is a streaming Bollinger Band indicator over closes.
// Value() returns %B: 0 at the lower band, 1 at the upper band.
type Bollinger struct {
	period int
	stdDev float64
	closes []float64
	last   float64
}

// NewBollinger creates a Bollinger Band indicator. The conventional
// parameters are period 20 with 2 standard deviations.
func NewBollinger(period int, stdDev float64) *Bollinger {
	return &Bollinger{
		period: period,
		stdDev: stdDev,
		closes: make([]float64, 0, period),
	}
}

func (bb *Bollinger) Name() string {
	return fmt.Sprintf("BB(%d,%.1f)", bb.period, bb.stdDev)
}

func (bb *Bollinger) Warmup() int {
	return bb.period
}

func (bb *Bollinger) Reset() {
	bb.closes = bb.closes[:0]
	bb.last = 0
}

func (bb *Bollinger) Update(b market.Bar) {
	bb.closes = append(bb.closes, b.Close)
	if len(bb.closes) > bb.period {
		bb.closes = bb.closes[1:]
	}
	bb.last = b.Close
}

func (bb *Bollinger) Ready() bool {
	return len(bb.closes) >= bb.period
}

// Value returns %B = (close - lower) / (upper - lower).
// When the bands collapse (zero variance) it returns 0.5.
func (bb *Bollinger) Value() float64 {
	if !bb.Ready() {
		return 0
	}
	mean, sd := bb.meanStd()
	upper := mean + bb.stdDev*sd
	lower := mean - bb.stdDev*sd
	if upper == lower {
		return 0.5
	}
	return (bb.last - lower) / (upper - lower)
}

// Bands returns the current (lower, middle, upper) band values.
func (bb *Bollinger) Bands() (lower, middle, upper float64) {
	if !bb.Ready() {
		return 0, 0, 0
	}
	mean, sd := bb.meanStd()
	return mean - bb.stdDev*sd, mean, mean + bb.stdDev*sd
}

func (bb *Bollinger) meanStd() (mean, sd float64) {
	for _, c := range bb.closes {
		mean += c
	}
	mean /= float64(len(bb.closes))

	var variance float64
	for _, c := range bb.closes {
		d := c - mean
		variance += d * d
	}
	variance /= float64(len(bb.closes))
	return mean, math.Sqrt(variance)
}
