package indicators

import (
	"fmt"
	"math"

	"github.com/upquant/upquant/market"
)

// ADX is a streaming Average Directional Index with Wilder smoothing.
// It also exposes the +DI and -DI components, which the regime detector
// uses to tell bullish trends from bearish ones.
type ADX struct {
	period int

	prevBar market.Bar
	hasPrev bool

	smTR      float64
	smPlusDM  float64
	smMinusDM float64
	trCount   int

	adx      float64
	dxSum    float64
	dxCount  int
	adxReady bool
}

// NewADX creates an Average Directional Index indicator with the given
// period. 14 is conventional.
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string {
	return fmt.Sprintf("ADX(%d)", a.period)
}

func (a *ADX) Warmup() int {
	// period bars to seed DM/TR smoothing plus period DX values for ADX,
	// plus one bar for the first directional move.
	return 2*a.period + 1
}

func (a *ADX) Reset() {
	*a = ADX{period: a.period}
}

func (a *ADX) Update(b market.Bar) {
	if !a.hasPrev {
		a.prevBar = b
		a.hasPrev = true
		return
	}

	upMove := b.High - a.prevBar.High
	downMove := a.prevBar.Low - b.Low

	plusDM, minusDM := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}
	tr := trueRange(b, a.prevBar)
	a.prevBar = b

	if a.trCount < a.period {
		a.smTR += tr
		a.smPlusDM += plusDM
		a.smMinusDM += minusDM
		a.trCount++
		if a.trCount < a.period {
			return
		}
	} else {
		a.smTR = a.smTR - a.smTR/float64(a.period) + tr
		a.smPlusDM = a.smPlusDM - a.smPlusDM/float64(a.period) + plusDM
		a.smMinusDM = a.smMinusDM - a.smMinusDM/float64(a.period) + minusDM
	}

	dx := a.dx()
	if !a.adxReady {
		a.dxSum += dx
		a.dxCount++
		if a.dxCount == a.period {
			a.adx = a.dxSum / float64(a.period)
			a.adxReady = true
		}
		return
	}
	a.adx = (a.adx*float64(a.period-1) + dx) / float64(a.period)
}

func (a *ADX) dx() float64 {
	plusDI, minusDI := a.di()
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return math.Abs(plusDI-minusDI) / sum * 100
}

func (a *ADX) di() (plusDI, minusDI float64) {
	if a.smTR == 0 {
		return 0, 0
	}
	return a.smPlusDM / a.smTR * 100, a.smMinusDM / a.smTR * 100
}

func (a *ADX) Ready() bool {
	return a.adxReady
}

func (a *ADX) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.adx
}

// DI returns the current +DI and -DI values.
func (a *ADX) DI() (plusDI, minusDI float64) {
	if a.trCount < a.period {
		return 0, 0
	}
	return a.di()
}
