package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/upquant/upquant/market"
)

// Tick is one step of simulated time: the union timestamp plus, per
// symbol, the index of the bar closing at that instant. Symbols without
// a bar at this timestamp are absent from Bars.
type Tick struct {
	Time time.Time
	Bars map[string]int
}

// Clock merges the bar series of every traded symbol into a single
// strictly increasing timeline. Each distinct close timestamp across
// all series becomes one tick; symbols with gaps simply skip ticks.
// The merge is computed once so replays of the same data always step
// through identical ticks.
type Clock struct {
	series map[string]*market.BarSeries
	ticks  []Tick
	pos    int
}

// NewClock builds the union timeline. Duplicate symbols and empty
// inputs are setup errors.
func NewClock(series ...*market.BarSeries) (*Clock, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("clock: no bar series")
	}

	bySymbol := make(map[string]*market.BarSeries, len(series))
	at := map[time.Time]map[string]int{}

	for _, s := range series {
		sym := s.Symbol()
		if _, dup := bySymbol[sym]; dup {
			return nil, fmt.Errorf("clock: duplicate series for %s", sym)
		}
		if s.Len() == 0 {
			return nil, fmt.Errorf("clock: empty series for %s", sym)
		}
		bySymbol[sym] = s

		for i, b := range s.Bars() {
			t := b.Time.UTC()
			m := at[t]
			if m == nil {
				m = map[string]int{}
				at[t] = m
			}
			m[sym] = i
		}
	}

	times := make([]time.Time, 0, len(at))
	for t := range at {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	ticks := make([]Tick, len(times))
	for i, t := range times {
		ticks[i] = Tick{Time: t, Bars: at[t]}
	}

	return &Clock{series: bySymbol, ticks: ticks}, nil
}

// Next yields the following tick, or ok=false at the end of the
// timeline.
func (c *Clock) Next() (Tick, bool) {
	if c.pos >= len(c.ticks) {
		return Tick{}, false
	}
	t := c.ticks[c.pos]
	c.pos++
	return t, true
}

// Rewind restarts the timeline from the beginning.
func (c *Clock) Rewind() { c.pos = 0 }

// Len returns the total number of ticks.
func (c *Clock) Len() int { return len(c.ticks) }

// Series returns the bar series for a symbol.
func (c *Clock) Series(symbol string) (*market.BarSeries, bool) {
	s, ok := c.series[symbol]
	return s, ok
}
