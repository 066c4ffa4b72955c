package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFill(id string, t time.Time) FillRecord {
	return FillRecord{
		TradeID:  id,
		Time:     t,
		Strategy: "breakout(k=0.50)",
		Symbol:   "KRW-BTC",
		Side:     "buy",
		Price:    50_000_000,
		Quantity: 0.002,
		Reason:   "Breakout",
	}
}

func TestCSVJournalWritesRows(t *testing.T) {
	dir := t.TempDir()
	fills := filepath.Join(dir, "fills.csv")
	equity := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(fills, equity)
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordFill(sampleFill("01ARZ", now)))
	require.NoError(t, j.RecordEquity(EquityRecord{Time: now, Cash: 1000, NetWorth: 1100}))
	require.NoError(t, j.Close())

	ff, err := os.Open(fills)
	require.NoError(t, err)
	defer ff.Close()

	rows, err := csv.NewReader(ff).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2) // header + one fill
	assert.Equal(t, "trade_id", rows[0][0])
	assert.Equal(t, "01ARZ", rows[1][0])
	assert.Equal(t, "2024-03-01T09:00:00Z", rows[1][1])
	assert.Equal(t, "buy", rows[1][4])
}

func TestSQLiteJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordFill(sampleFill("01AAA", base)))
	require.NoError(t, j.RecordFill(sampleFill("01BBB", base.Add(time.Hour))))
	require.NoError(t, j.RecordEquity(EquityRecord{Time: base, Cash: 900, NetWorth: 1000}))

	fills, err := j.ListFillsBetween(base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "01AAA", fills[0].TradeID)
	assert.Equal(t, "01BBB", fills[1].TradeID)
	assert.Equal(t, 0.002, fills[0].Quantity)

	// Window is half-open: the second fill's timestamp is excluded.
	fills, err = j.ListFillsBetween(base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, fills, 1)

	eq, err := j.ListEquityBetween(base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, eq, 1)
	assert.Equal(t, 1000.0, eq[0].NetWorth)
}

func TestSQLiteDuplicateTradeIDRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordFill(sampleFill("01AAA", now)))
	assert.Error(t, j.RecordFill(sampleFill("01AAA", now.Add(time.Hour))))
}

func TestNopJournal(t *testing.T) {
	var j Journal = Nop{}
	assert.NoError(t, j.RecordFill(FillRecord{}))
	assert.NoError(t, j.RecordEquity(EquityRecord{}))
	assert.NoError(t, j.Close())
}
