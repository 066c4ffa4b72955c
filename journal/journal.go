// Package journal persists the fills and equity curve of a run to CSV
// or SQLite so results can be inspected and replays compared.
package journal

import "time"

// FillRecord is one executed fill.
type FillRecord struct {
	TradeID  string
	Time     time.Time
	Strategy string
	Symbol   string
	Side     string
	Price    float64
	Quantity float64
	Reason   string
}

// EquityRecord is one point of the marked-to-market equity curve.
type EquityRecord struct {
	Time     time.Time
	Cash     float64
	NetWorth float64
}

type Journal interface {
	RecordFill(FillRecord) error
	RecordEquity(EquityRecord) error
	Close() error
}

// Nop discards everything. Used when a run does not need persistence.
type Nop struct{}

func (Nop) RecordFill(FillRecord) error     { return nil }
func (Nop) RecordEquity(EquityRecord) error { return nil }
func (Nop) Close() error                    { return nil }
