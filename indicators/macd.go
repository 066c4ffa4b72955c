package indicators

import (
	"fmt"

	"github.com/upquant/upquant/market"
)

// MACD is a streaming Moving Average Convergence Divergence indicator.
// Value() returns the histogram (MACD line minus signal line), which is
// what the trend-following strategy uses for confirmation.
type MACD struct {
	fast   *ExponentialMA
	slow   *ExponentialMA
	signal *ExponentialMA
	count  int
}

// NewMACD creates a MACD with the given fast/slow/signal periods.
// The conventional parameters are 12, 26 and 9.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD(%d,%d,%d)", m.fast.period, m.slow.period, m.signal.period)
}

func (m *MACD) Warmup() int {
	return m.slow.period + m.signal.period
}

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.count = 0
}

func (m *MACD) Update(b market.Bar) {
	m.fast.Update(b)
	m.slow.Update(b)
	if m.fast.Ready() && m.slow.Ready() {
		m.signal.update(m.fast.Value() - m.slow.Value())
	}
	m.count++
}

func (m *MACD) Ready() bool {
	return m.signal.Ready()
}

// Value returns the MACD histogram.
func (m *MACD) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.Line() - m.signal.Value()
}

// Line returns the MACD line (fast EMA minus slow EMA).
func (m *MACD) Line() float64 {
	return m.fast.Value() - m.slow.Value()
}
