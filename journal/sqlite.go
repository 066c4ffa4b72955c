package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS fills (
	trade_id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	price REAL NOT NULL,
	quantity REAL NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	net_worth REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_time ON fills(time);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordFill(r FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(trade_id, time, strategy, symbol, side, price, quantity, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TradeID, r.Time.UTC(), r.Strategy, r.Symbol, r.Side,
		r.Price, r.Quantity, r.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(r EquityRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, cash, net_worth) VALUES (?, ?, ?)`,
		r.Time.UTC(), r.Cash, r.NetWorth,
	)
	return err
}

// ListFillsBetween returns fills with from <= time < to, ordered by time
// then trade ID so replays compare byte for byte.
func (j *SQLiteJournal) ListFillsBetween(from, to time.Time) ([]FillRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, time, strategy, symbol, side, price, quantity, reason
		FROM fills
		WHERE time >= ? AND time < ?
		ORDER BY time, trade_id`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []FillRecord
	for rows.Next() {
		var r FillRecord
		if err := rows.Scan(&r.TradeID, &r.Time, &r.Strategy, &r.Symbol,
			&r.Side, &r.Price, &r.Quantity, &r.Reason); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// ListEquityBetween returns equity points with from <= time < to in
// time order.
func (j *SQLiteJournal) ListEquityBetween(from, to time.Time) ([]EquityRecord, error) {
	rows, err := j.db.Query(`
		SELECT time, cash, net_worth
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []EquityRecord
	for rows.Next() {
		var r EquityRecord
		if err := rows.Scan(&r.Time, &r.Cash, &r.NetWorth); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
