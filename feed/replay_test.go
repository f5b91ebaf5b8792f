package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebot/market"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticks.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, f Feed) []market.Event {
	t.Helper()

	errc := make(chan error, 1)
	go func() { errc <- f.Run(context.Background()) }()

	var events []market.Event
	for e := range f.Events() {
		events = append(events, e)
	}
	require.NoError(t, <-errc)
	return events
}

func TestCSVFeedReplaysInOrder(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, `time,instrument,bid,ask
2026-03-02T15:00:00Z,AAPL,99.90,100.10
2026-03-02T15:00:01Z,AAPL,99.95,100.15
2026-03-02T15:00:02Z,SPY,500.00,500.10
`)

	events := collect(t, NewCSV(path))
	require.Len(t, events, 3)
	assert.Equal(t, "AAPL", events[0].Instrument)
	assert.InDelta(t, 99.90, events[0].Bid, 1e-9)
	assert.InDelta(t, 100.15, events[1].Ask, 1e-9)
	assert.Equal(t, "SPY", events[2].Instrument)
	assert.True(t, events[1].Time.After(events[0].Time))
}

func TestCSVFeedOptionalTradeColumns(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, `2026-03-02T15:00:00Z,AAPL,99.90,100.10,100.00,250
`)

	events := collect(t, NewCSV(path))
	require.Len(t, events, 1)
	assert.InDelta(t, 100.00, events[0].Price, 1e-9)
	assert.InDelta(t, 250.0, events[0].Volume, 1e-9)
}

func TestCSVFeedSkipsBlankRows(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, `time,instrument,bid,ask
2026-03-02T15:00:00Z,AAPL,99.90,100.10

,,,
`)

	events := collect(t, NewCSV(path))
	assert.Len(t, events, 1)
}

func TestCSVFeedBadPriceFails(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, `2026-03-02T15:00:00Z,AAPL,not-a-number,100.10
`)

	f := NewCSV(path)
	errc := make(chan error, 1)
	go func() { errc <- f.Run(context.Background()) }()
	for range f.Events() {
	}

	select {
	case err := <-errc:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not finish")
	}
}

func TestCSVFeedMissingFile(t *testing.T) {
	t.Parallel()

	f := NewCSV(filepath.Join(t.TempDir(), "nope.csv"))
	err := f.Run(context.Background())
	require.Error(t, err)
}
