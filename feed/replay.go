package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/tradebot/market"
)

// CSVFeed replays recorded quotes from a CSV file.
//
// Expected columns: time,instrument,bid,ask[,price,volume]
// A header row is allowed; blank lines are skipped.
type CSVFeed struct {
	path   string
	events chan market.Event
}

func NewCSV(path string) *CSVFeed {
	return &CSVFeed{path: path, events: make(chan market.Event, 256)}
}

func (f *CSVFeed) Events() <-chan market.Event { return f.events }

func (f *CSVFeed) Run(ctx context.Context) error {
	defer close(f.events)

	fh, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1

	sawFirst := false
	for {
		row, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay %s: %w", f.path, err)
		}
		if len(row) == 0 {
			continue
		}
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		e, ok, err := parseRow(row)
		if err != nil {
			return fmt.Errorf("replay %s: %w", f.path, err)
		}
		if !ok {
			continue
		}

		select {
		case f.events <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func parseRow(row []string) (market.Event, bool, error) {
	if len(row) < 4 {
		return market.Event{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return market.Event{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return market.Event{}, false, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2
	}

	instr := strings.TrimSpace(row[1])
	if instr == "" {
		return market.Event{}, false, nil
	}

	bid, err := parseFloat(row[2])
	if err != nil {
		return market.Event{}, false, fmt.Errorf("bad bid %q: %w", row[2], err)
	}
	ask, err := parseFloat(row[3])
	if err != nil {
		return market.Event{}, false, fmt.Errorf("bad ask %q: %w", row[3], err)
	}

	e := market.Event{
		Kind:       market.KindQuote,
		Instrument: instr,
		Time:       t,
		Bid:        bid,
		Ask:        ask,
	}
	if len(row) >= 5 && strings.TrimSpace(row[4]) != "" {
		if e.Price, err = parseFloat(row[4]); err != nil {
			return market.Event{}, false, fmt.Errorf("bad price %q: %w", row[4], err)
		}
	}
	if len(row) >= 6 && strings.TrimSpace(row[5]) != "" {
		if e.Volume, err = parseFloat(row[5]); err != nil {
			return market.Event{}, false, fmt.Errorf("bad volume %q: %w", row[5], err)
		}
	}
	return e, true, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
