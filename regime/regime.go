// Package regime classifies the current market state from directional
// strength so strategy thresholds can adapt to it.
package regime

import (
	"github.com/upquant/upquant/indicators"
	"github.com/upquant/upquant/market"
)

// Regime is the detected market state.
type Regime int

const (
	// Undefined covers warmup and the ambiguous band between the
	// trending and ranging thresholds.
	Undefined Regime = iota
	Bullish
	Bearish
	Sideways
)

func (r Regime) String() string {
	switch r {
	case Bullish:
		return "bullish"
	case Bearish:
		return "bearish"
	case Sideways:
		return "sideways"
	default:
		return "undefined"
	}
}

// ADX classification thresholds: at or above Trending the market is
// directional, below Ranging it is range-bound, in between it is
// ambiguous.
const (
	DefaultTrendingADX = 25.0
	DefaultRangingADX  = 20.0
)

// Detector streams bars through ADX/DI and ATR to classify the regime
// and report normalized volatility.
type Detector struct {
	adx *indicators.ADX
	atr *indicators.ATR

	trendingADX float64
	rangingADX  float64
	lastClose   float64
}

// NewDetector creates a regime detector with the given ADX period.
// Non-positive thresholds select the defaults.
func NewDetector(period int, trendingADX, rangingADX float64) *Detector {
	if period <= 0 {
		period = 14
	}
	if trendingADX <= 0 {
		trendingADX = DefaultTrendingADX
	}
	if rangingADX <= 0 || rangingADX > trendingADX {
		rangingADX = DefaultRangingADX
	}
	return &Detector{
		adx:         indicators.NewADX(period),
		atr:         indicators.NewATR(period),
		trendingADX: trendingADX,
		rangingADX:  rangingADX,
	}
}

// Update feeds the next bar.
func (d *Detector) Update(b market.Bar) {
	d.adx.Update(b)
	d.atr.Update(b)
	d.lastClose = b.Close
}

// Ready reports whether enough bars have been seen to classify.
func (d *Detector) Ready() bool {
	return d.adx.Ready()
}

// Current returns the regime for the bars seen so far.
func (d *Detector) Current() Regime {
	if !d.adx.Ready() {
		return Undefined
	}
	adx := d.adx.Value()
	switch {
	case adx >= d.trendingADX:
		plus, minus := d.adx.DI()
		if plus > minus {
			return Bullish
		}
		return Bearish
	case adx < d.rangingADX:
		return Sideways
	default:
		return Undefined
	}
}

// Volatility returns the normalized ATR (ATR over last close), or 0
// before warmup.
func (d *Detector) Volatility() float64 {
	if !d.atr.Ready() || d.lastClose <= 0 {
		return 0
	}
	return d.atr.Value() / d.lastClose
}

// Reset clears all streamed state.
func (d *Detector) Reset() {
	d.adx.Reset()
	d.atr.Reset()
	d.lastClose = 0
}

// BuyThreshold maps a regime to the predictor entry threshold: bullish
// markets accept weaker buy signals, bearish markets demand stronger
// ones, and the ambiguous case uses the ranging default.
func BuyThreshold(r Regime) float64 {
	switch r {
	case Bullish:
		return 0.55
	case Bearish:
		return 0.75
	default:
		return 0.65
	}
}
