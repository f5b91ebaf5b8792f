package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *SQLite {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestSQLiteOrderRoundTrip(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, j.RecordOrder(OrderRecord{
		ID: "O1", Instrument: "AAPL", Strategy: "momentum",
		Quantity: 10, State: "PENDING", Time: now,
	}))
	require.NoError(t, j.RecordOrder(OrderRecord{
		ID: "O1", BrokerID: "B1", Instrument: "AAPL", Strategy: "momentum",
		Quantity: 10, FilledQty: 10, AvgFillPrice: 101.5, State: "FILLED",
		Time: now.Add(time.Second),
	}))

	orders, err := j.ListOrders(10)
	require.NoError(t, err)
	require.Len(t, orders, 2, "one row per lifecycle transition")
	assert.Equal(t, "FILLED", orders[0].State)
	assert.Equal(t, "PENDING", orders[1].State)
	assert.InDelta(t, 101.5, orders[0].AvgFillPrice, 1e-9)
}

func TestSQLiteFillDuplicateIgnored(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	fill := FillRecord{ID: "F1", OrderID: "O1", Instrument: "AAPL", Quantity: 10, Price: 100, Time: time.Now().UTC()}

	require.NoError(t, j.RecordFill(fill))
	require.NoError(t, j.RecordFill(fill))

	fills, err := j.ListFills(10)
	require.NoError(t, err)
	assert.Len(t, fills, 1)
}

func TestSQLiteEquity(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, j.RecordEquity(EquityRecord{Time: now, Cash: 50000, Equity: 50000}))
	require.NoError(t, j.RecordEquity(EquityRecord{Time: now.Add(time.Minute), Cash: 49000, Equity: 50100, UnrealizedPL: 1100, OpenPositions: 1}))

	eq, err := j.ListEquity(10)
	require.NoError(t, err)
	require.Len(t, eq, 2)
	assert.InDelta(t, 50100.0, eq[0].Equity, 1e-9)
	assert.Equal(t, 1, eq[0].OpenPositions)
}
