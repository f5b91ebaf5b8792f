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

func TestCSVJournalWritesAllFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, j.RecordOrder(OrderRecord{ID: "O1", Instrument: "AAPL", Strategy: "momentum", Quantity: 10, State: "SUBMITTED", Time: now}))
	require.NoError(t, j.RecordFill(FillRecord{ID: "F1", OrderID: "O1", Instrument: "AAPL", Quantity: 10, Price: 100, Time: now}))
	require.NoError(t, j.RecordEquity(EquityRecord{Time: now, Cash: 49000, Equity: 50000, OpenPositions: 1}))
	require.NoError(t, j.Close())

	fh, err := os.Open(filepath.Join(dir, "orders.csv"))
	require.NoError(t, err)
	defer fh.Close()

	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "order_id", rows[0][0])
	assert.Equal(t, "O1", rows[1][0])
	assert.Equal(t, "SUBMITTED", rows[1][7])

	for _, name := range []string{"fills.csv", "equity.csv"} {
		st, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Greater(t, st.Size(), int64(0))
	}
}
