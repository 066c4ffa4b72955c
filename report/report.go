// Package report computes performance summaries from the equity
// snapshots and trade log a simulation run produces.
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/upquant/upquant/ledger"
)

// Snapshot is one point on the equity curve: total net worth marked to
// market at a bar close.
type Snapshot struct {
	Time     time.Time
	Cash     float64
	NetWorth float64
}

// Summary is the performance picture of a completed run. Ratios are
// fractions, not percentages.
type Summary struct {
	Start time.Time
	End   time.Time

	InitialNetWorth float64
	FinalNetWorth   float64
	TotalReturn     float64
	MaxDrawdown     float64
	Sharpe          float64

	Trades   int
	Wins     int
	Losses   int
	WinRate  float64
	NetPnL   float64
	FeesPaid float64

	// NoData is set when fewer than two snapshots exist; all ratio
	// fields are zero in that case.
	NoData bool
}

func (s Summary) String() string {
	if s.NoData {
		return "no data: fewer than two equity snapshots"
	}
	return fmt.Sprintf("return %.2f%% maxDD %.2f%% sharpe %.2f trades %d winRate %.1f%%",
		s.TotalReturn*100, s.MaxDrawdown*100, s.Sharpe, s.Trades, s.WinRate*100)
}

// Summarize builds a Summary from an equity curve and the trades behind
// it. periodsPerYear annualizes the Sharpe ratio and must match the
// snapshot cadence (365 for daily bars, 365*24 for hourly).
func Summarize(snaps []Snapshot, trades []ledger.Trade, feeRate, periodsPerYear float64) Summary {
	if len(snaps) < 2 {
		return Summary{NoData: true}
	}

	first, last := snaps[0], snaps[len(snaps)-1]
	s := Summary{
		Start:           first.Time,
		End:             last.Time,
		InitialNetWorth: first.NetWorth,
		FinalNetWorth:   last.NetWorth,
	}
	if first.NetWorth > 0 {
		s.TotalReturn = last.NetWorth/first.NetWorth - 1
	}
	s.NetPnL = last.NetWorth - first.NetWorth

	s.MaxDrawdown = maxDrawdown(snaps)
	s.Sharpe = sharpe(snaps, periodsPerYear)

	s.Trades, s.Wins, s.Losses, s.WinRate, s.FeesPaid = tradeStats(trades, feeRate)
	return s
}

// maxDrawdown returns the deepest peak-to-trough decline as a negative
// fraction.
func maxDrawdown(snaps []Snapshot) float64 {
	peak := snaps[0].NetWorth
	worst := 0.0
	for _, sn := range snaps[1:] {
		if sn.NetWorth > peak {
			peak = sn.NetWorth
			continue
		}
		if peak > 0 {
			if dd := sn.NetWorth/peak - 1; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpe annualizes mean over standard deviation of per-period returns.
// Fewer than two returns, or a flat curve, yields 0.
func sharpe(snaps []Snapshot, periodsPerYear float64) float64 {
	rets := make([]float64, 0, len(snaps)-1)
	for i := 1; i < len(snaps); i++ {
		prev := snaps[i-1].NetWorth
		if prev > 0 {
			rets = append(rets, snaps[i].NetWorth/prev-1)
		}
	}
	if len(rets) < 2 {
		return 0
	}

	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	var variance float64
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rets) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(periodsPerYear)
}

// tradeStats classifies each sell as a win or a loss against the average
// cost of the position it reduced, the same basis the ledger uses.
func tradeStats(trades []ledger.Trade, feeRate float64) (n, wins, losses int, winRate, fees float64) {
	type basis struct {
		qty  float64
		cost float64 // average entry price
	}
	open := map[string]*basis{}

	for _, tr := range trades {
		n++
		fees += tr.Price * tr.Quantity * feeRate

		switch tr.Side {
		case ledger.Buy:
			b := open[tr.Symbol]
			if b == nil {
				b = &basis{}
				open[tr.Symbol] = b
			}
			total := b.qty + tr.Quantity
			if total > 0 {
				b.cost = (b.cost*b.qty + tr.Price*tr.Quantity) / total
			}
			b.qty = total
		case ledger.Sell:
			b := open[tr.Symbol]
			if b == nil {
				continue
			}
			proceeds := tr.Price * tr.Quantity * (1 - feeRate)
			if proceeds > b.cost*tr.Quantity {
				wins++
			} else {
				losses++
			}
			b.qty -= tr.Quantity
			if b.qty <= 0 {
				delete(open, tr.Symbol)
			}
		}
	}

	if closed := wins + losses; closed > 0 {
		winRate = float64(wins) / float64(closed)
	}
	return n, wins, losses, winRate, fees
}
