package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// CSVJournal writes orders, fills, and equity to three CSV files in dir.
type CSVJournal struct {
	orders *csv.Writer
	fills  *csv.Writer
	equity *csv.Writer
	files  []*os.File
}

func NewCSV(dir string) (*CSVJournal, error) {
	j := &CSVJournal{}

	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.orders, err = open("orders.csv", []string{"order_id", "broker_id", "instrument", "strategy", "quantity", "filled_qty", "avg_fill_price", "state", "reason", "time"}); err != nil {
		return nil, err
	}
	if j.fills, err = open("fills.csv", []string{"fill_id", "order_id", "instrument", "quantity", "price", "time"}); err != nil {
		return nil, err
	}
	if j.equity, err = open("equity.csv", []string{"time", "cash", "equity", "realized_pl", "unrealized_pl", "open_positions"}); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordOrder(o OrderRecord) error {
	err := j.orders.Write([]string{
		o.ID,
		o.BrokerID,
		o.Instrument,
		o.Strategy,
		f(o.Quantity),
		f(o.FilledQty),
		f(o.AvgFillPrice),
		o.State,
		o.Reason,
		o.Time.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSVJournal) RecordFill(r FillRecord) error {
	err := j.fills.Write([]string{
		r.ID,
		r.OrderID,
		r.Instrument,
		f(r.Quantity),
		f(r.Price),
		r.Time.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.fills.Flush()
	return j.fills.Error()
}

func (j *CSVJournal) RecordEquity(e EquityRecord) error {
	err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Cash),
		f(e.Equity),
		f(e.RealizedPL),
		f(e.UnrealizedPL),
		strconv.Itoa(e.OpenPositions),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	for _, w := range []*csv.Writer{j.orders, j.fills, j.equity} {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	}
	for _, fh := range j.files {
		if err := fh.Close(); err != nil {
			return err
		}
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
