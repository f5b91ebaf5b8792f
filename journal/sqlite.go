package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(order_id, broker_id, instrument, strategy, quantity, filled_qty, avg_fill_price, state, reason, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.BrokerID, o.Instrument, o.Strategy, o.Quantity,
		o.FilledQty, o.AvgFillPrice, o.State, o.Reason, o.Time,
	)
	return err
}

func (j *SQLite) RecordFill(f FillRecord) error {
	_, err := j.db.Exec(`
		INSERT OR IGNORE INTO fills
		(fill_id, order_id, instrument, quantity, price, time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.OrderID, f.Instrument, f.Quantity, f.Price, f.Time,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquityRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, cash, equity, realized_pl, unrealized_pl, open_positions)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.Time, e.Cash, e.Equity, e.RealizedPL, e.UnrealizedPL, e.OpenPositions,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
