package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/market"
)

func TestApplyFillIdempotentPerFillID(t *testing.T) {
	t.Parallel()

	l := New(50000)
	f := Fill{
		ID:         "F1",
		OrderID:    "O1",
		Instrument: "XYZ",
		Quantity:   10,
		Price:      100,
		Time:       time.Now(),
	}

	require.True(t, l.ApplyFill(f))
	require.False(t, l.ApplyFill(f), "redelivered fill must be a no-op")

	snap := l.Snapshot()
	pos, ok := snap.Position("XYZ")
	require.True(t, ok)
	assert.InDelta(t, 10.0, pos.Quantity, 1e-9, "position grows by exactly 10 shares, not 20")
	assert.InDelta(t, 50000-1000, snap.Cash, 1e-9)
}

func TestApplyFillAveragesEntry(t *testing.T) {
	t.Parallel()

	l := New(100000)
	require.True(t, l.ApplyFill(Fill{ID: "a", Instrument: "AAPL", Quantity: 10, Price: 100}))
	require.True(t, l.ApplyFill(Fill{ID: "b", Instrument: "AAPL", Quantity: 10, Price: 110}))

	pos, ok := l.Snapshot().Position("AAPL")
	require.True(t, ok)
	assert.InDelta(t, 20.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 105.0, pos.AvgEntry, 1e-9)
}

func TestApplyFillRealizesOnReduce(t *testing.T) {
	t.Parallel()

	l := New(100000)
	require.True(t, l.ApplyFill(Fill{ID: "a", Instrument: "AAPL", Quantity: 10, Price: 100}))
	require.True(t, l.ApplyFill(Fill{ID: "b", Instrument: "AAPL", Quantity: -4, Price: 110}))

	assert.InDelta(t, 40.0, l.RealizedPL(), 1e-9)

	pos, ok := l.Snapshot().Position("AAPL")
	require.True(t, ok)
	assert.InDelta(t, 6.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 100.0, pos.AvgEntry, 1e-9, "avg entry unchanged on partial close")
}

func TestApplyFillCrossThroughFlat(t *testing.T) {
	t.Parallel()

	l := New(100000)
	require.True(t, l.ApplyFill(Fill{ID: "a", Instrument: "AAPL", Quantity: 10, Price: 100}))
	require.True(t, l.ApplyFill(Fill{ID: "b", Instrument: "AAPL", Quantity: -15, Price: 90}))

	assert.InDelta(t, -100.0, l.RealizedPL(), 1e-9)

	pos, ok := l.Snapshot().Position("AAPL")
	require.True(t, ok)
	assert.InDelta(t, -5.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 90.0, pos.AvgEntry, 1e-9, "short remainder opens at fill price")
}

func TestFlatPositionRemoved(t *testing.T) {
	t.Parallel()

	l := New(100000)
	require.True(t, l.ApplyFill(Fill{ID: "a", Instrument: "AAPL", Quantity: 10, Price: 100}))
	require.True(t, l.ApplyFill(Fill{ID: "b", Instrument: "AAPL", Quantity: -10, Price: 105}))

	snap := l.Snapshot()
	_, ok := snap.Position("AAPL")
	assert.False(t, ok)
	assert.Equal(t, 0, snap.OpenPositions())
	assert.InDelta(t, 50.0, snap.RealizedPL, 1e-9)
}

func TestMarkToMarket(t *testing.T) {
	t.Parallel()

	l := New(50000)
	require.True(t, l.ApplyFill(Fill{ID: "a", Instrument: "XYZ", Quantity: 10, Price: 100}))

	l.MarkToMarket(map[string]market.Quote{
		"XYZ": {Instrument: "XYZ", Bid: 104.99, Ask: 105.01, Last: 105},
	})

	snap := l.Snapshot()
	pos, _ := snap.Position("XYZ")
	assert.InDelta(t, 10*(104.99-100), pos.UnrealizedPL, 1e-9, "longs mark on bid")
	assert.InDelta(t, 49000+10*104.99, snap.Equity, 1e-9)
	assert.False(t, pos.StaleMark)
}

func TestMarkToMarketStaleFlag(t *testing.T) {
	t.Parallel()

	l := New(50000)
	require.True(t, l.ApplyFill(Fill{ID: "a", Instrument: "XYZ", Quantity: 10, Price: 100}))

	l.MarkToMarket(map[string]market.Quote{
		"XYZ": {Instrument: "XYZ", Bid: 99, Ask: 99.02, Stale: true},
	})

	pos, _ := l.Snapshot().Position("XYZ")
	assert.True(t, pos.StaleMark, "stale quote still marks the position, flagged")
	assert.InDelta(t, -10.0, pos.UnrealizedPL, 1e-9)
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	l := New(1000)
	require.True(t, l.ApplyFill(Fill{ID: "a", Instrument: "XYZ", Quantity: 1, Price: 100}))

	snap := l.Snapshot()
	snap.Positions["XYZ"] = Position{Instrument: "XYZ", Quantity: 999}
	snap.Cash = 0

	fresh := l.Snapshot()
	pos, _ := fresh.Position("XYZ")
	assert.InDelta(t, 1.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 900.0, fresh.Cash, 1e-9)
}

func TestReconcileCorrectsToVenue(t *testing.T) {
	t.Parallel()

	l := New(10000)
	require.True(t, l.ApplyFill(Fill{ID: "a", Instrument: "AAPL", Quantity: 10, Price: 100}))
	require.True(t, l.ApplyFill(Fill{ID: "b", Instrument: "SPY", Quantity: 2, Price: 500}))

	acct := broker.AccountSnapshot{Cash: 8000}
	venue := []broker.PositionSnapshot{
		{Instrument: "AAPL", Quantity: 12, AvgEntry: 101}, // qty and entry drifted
		{Instrument: "MSFT", Quantity: 5, AvgEntry: 300},  // missing locally
		// SPY gone at the venue
	}

	fixes := l.Reconcile(acct, venue)
	require.Len(t, fixes, 5)

	snap := l.Snapshot()
	assert.InDelta(t, 8000.0, snap.Cash, 1e-9)

	aapl, _ := snap.Position("AAPL")
	assert.InDelta(t, 12.0, aapl.Quantity, 1e-9)
	assert.InDelta(t, 101.0, aapl.AvgEntry, 1e-9)

	msft, ok := snap.Position("MSFT")
	require.True(t, ok)
	assert.InDelta(t, 5.0, msft.Quantity, 1e-9)

	_, ok = snap.Position("SPY")
	assert.False(t, ok, "position absent at venue is dropped")
}

func TestReconcileNoMismatch(t *testing.T) {
	t.Parallel()

	l := New(9000)
	require.True(t, l.ApplyFill(Fill{ID: "a", Instrument: "AAPL", Quantity: 10, Price: 100}))

	fixes := l.Reconcile(
		broker.AccountSnapshot{Cash: 8000},
		[]broker.PositionSnapshot{{Instrument: "AAPL", Quantity: 10, AvgEntry: 100}},
	)
	assert.Empty(t, fixes)
}
