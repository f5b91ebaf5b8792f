package risk

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebot/ledger"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/strategy"
)

// Monday 2026-03-02 10:00 New York, inside equity trading hours.
var tradingTime = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func newManager(maxPortfolioRisk float64, limits map[string]StrategyLimits) *Manager {
	return NewManager(
		Policy{MaxPortfolioRisk: maxPortfolioRisk, MaxOpenPositions: 10},
		limits,
		NewBudget(0),
		NewBreaker(BreakerConfig{MaxLossPct: 0.10, Window: time.Hour, AllowCloses: true}),
	)
}

func snapshotWithEquity(equity float64) ledger.Snapshot {
	return ledger.Snapshot{Cash: equity, Equity: equity, Positions: map[string]ledger.Position{}}
}

func quoteAt(price float64) market.Quote {
	return market.Quote{Instrument: "XYZ", Bid: price - 0.01, Ask: price + 0.01, Last: price, Time: tradingTime}
}

func TestReviewResizesToPerTradeCeiling(t *testing.T) {
	t.Parallel()

	m := newManager(1.0, map[string]StrategyLimits{
		"mom": {RiskPerTrade: 0.02, MaxPositions: 5},
	})
	snap := snapshotWithEquity(50000)
	m.Observe(tradingTime, snap)

	d := m.Review(strategy.Intent{
		ID:         "i1",
		Strategy:   "mom",
		Instrument: "XYZ",
		Side:       strategy.Buy,
		Notional:   5000,
		Time:       tradingTime,
	}, snap, quoteAt(100))

	require.True(t, d.Approved)
	assert.True(t, d.Resized)
	assert.InDelta(t, 10.0, d.Quantity, 1e-9, "2%% of $50k at $100 is 10 shares")
	assert.InDelta(t, 1000.0, d.Notional, 1e-9)
	assert.InDelta(t, 1000.0, m.Budget().Used(), 1e-9)
}

func TestReviewWithinCeilingNotResized(t *testing.T) {
	t.Parallel()

	m := newManager(1.0, map[string]StrategyLimits{
		"mom": {RiskPerTrade: 0.02, MaxPositions: 5},
	})
	snap := snapshotWithEquity(50000)
	m.Observe(tradingTime, snap)

	d := m.Review(strategy.Intent{
		ID: "i1", Strategy: "mom", Instrument: "XYZ", Side: strategy.Buy,
		Notional: 500, Time: tradingTime,
	}, snap, quoteAt(100))

	require.True(t, d.Approved)
	assert.False(t, d.Resized)
	assert.InDelta(t, 5.0, d.Quantity, 1e-9)
}

func TestReviewRejectsWhenResizedBelowMinimum(t *testing.T) {
	t.Parallel()

	m := newManager(1.0, map[string]StrategyLimits{
		"mom": {RiskPerTrade: 0.0001, MaxPositions: 5}, // $5 ceiling on $50k
	})
	snap := snapshotWithEquity(50000)
	m.Observe(tradingTime, snap)

	d := m.Review(strategy.Intent{
		ID: "i1", Strategy: "mom", Instrument: "XYZ", Side: strategy.Buy,
		Notional: 5000, Time: tradingTime,
	}, snap, quoteAt(100))

	require.False(t, d.Approved)
	assert.Equal(t, "TRADE_TOO_SMALL", d.Reason())
	assert.InDelta(t, 0.0, m.Budget().Used(), 1e-9, "rejection reserves nothing")
}

func TestBudgetNeverExceedsCeilingRandomized(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		equity := 10000 + rng.Float64()*90000
		maxRisk := 0.05 + rng.Float64()*0.5
		m := newManager(maxRisk, map[string]StrategyLimits{
			"r": {RiskPerTrade: 0.01 + rng.Float64()*0.2, MaxPositions: 100},
		})
		snap := snapshotWithEquity(equity)
		m.Observe(tradingTime, snap)
		ceiling := maxRisk * equity

		for i := 0; i < 40; i++ {
			price := 10 + rng.Float64()*490
			d := m.Review(strategy.Intent{
				ID:         fmt.Sprintf("t%d-i%d", trial, i),
				Strategy:   "r",
				Instrument: "BTC/USD", // fractional, always tradable
				Side:       strategy.Buy,
				Notional:   rng.Float64() * equity,
				Time:       tradingTime,
			}, snap, market.Quote{Bid: price, Ask: price, Last: price, Time: tradingTime})

			used := m.Budget().Used()
			assert.LessOrEqual(t, used, ceiling+1e-6,
				"post-approval budget must never exceed ceiling (approved=%v)", d.Approved)
		}
	}
}

func TestReviewRejectsWhileBreakerTripped(t *testing.T) {
	t.Parallel()

	m := newManager(1.0, map[string]StrategyLimits{
		"mom": {RiskPerTrade: 0.1, MaxPositions: 5},
	})
	snap := snapshotWithEquity(50000)
	m.Observe(tradingTime, snap)
	m.Breaker().Trip("test")

	d := m.Review(strategy.Intent{
		ID: "i1", Strategy: "mom", Instrument: "XYZ", Side: strategy.Buy,
		Notional: 100, Time: tradingTime,
	}, snap, quoteAt(100))

	require.False(t, d.Approved)
	assert.Equal(t, "CIRCUIT_BREAKER", d.Reason())
}

func TestReviewAllowsReduceWhileTripped(t *testing.T) {
	t.Parallel()

	m := newManager(1.0, map[string]StrategyLimits{
		"mom": {RiskPerTrade: 0.1, MaxPositions: 5},
	})
	snap := snapshotWithEquity(50000)
	snap.Positions["XYZ"] = ledger.Position{Instrument: "XYZ", Quantity: 10, AvgEntry: 100}
	m.Observe(tradingTime, snap)
	m.Breaker().Trip("test")

	d := m.Review(strategy.Intent{
		ID: "i1", Strategy: "mom", Instrument: "XYZ", Side: strategy.Sell,
		Quantity: 10, Reduce: true, Time: tradingTime,
	}, snap, quoteAt(100))

	require.True(t, d.Approved, "risk-reducing order passes while tripped when closes are allowed")
	assert.InDelta(t, -10.0, d.Quantity, 1e-9)
	assert.InDelta(t, 0.0, d.Reserved, 1e-9)
}

func TestReviewRejectsStaleQuote(t *testing.T) {
	t.Parallel()

	m := newManager(1.0, map[string]StrategyLimits{
		"mom": {RiskPerTrade: 0.1, MaxPositions: 5},
	})
	snap := snapshotWithEquity(50000)
	m.Observe(tradingTime, snap)

	q := quoteAt(100)
	q.Stale = true

	d := m.Review(strategy.Intent{
		ID: "i1", Strategy: "mom", Instrument: "XYZ", Side: strategy.Buy,
		Notional: 100, Time: tradingTime,
	}, snap, q)

	require.False(t, d.Approved)
	assert.Equal(t, "STALE_QUOTE", d.Reason())
}

func TestReviewRejectsOutsideTradingHours(t *testing.T) {
	t.Parallel()

	m := newManager(1.0, map[string]StrategyLimits{
		"mom": {RiskPerTrade: 0.1, MaxPositions: 5},
	})
	snap := snapshotWithEquity(50000)
	sunday := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	m.Observe(sunday, snap)

	d := m.Review(strategy.Intent{
		ID: "i1", Strategy: "mom", Instrument: "XYZ", Side: strategy.Buy,
		Notional: 100, Time: sunday,
	}, snap, market.Quote{Bid: 99.99, Ask: 100.01, Time: sunday})

	require.False(t, d.Approved)
	assert.Equal(t, "MARKET_CLOSED", d.Reason())
}

func TestReviewMaxPositions(t *testing.T) {
	t.Parallel()

	m := newManager(1.0, map[string]StrategyLimits{
		"mom": {RiskPerTrade: 0.1, MaxPositions: 2},
	})
	snap := snapshotWithEquity(50000)
	snap.Positions["AAPL"] = ledger.Position{Instrument: "AAPL", Quantity: 5, AvgEntry: 100}
	snap.Positions["SPY"] = ledger.Position{Instrument: "SPY", Quantity: 5, AvgEntry: 500}
	m.Observe(tradingTime, snap)

	d := m.Review(strategy.Intent{
		ID: "i1", Strategy: "mom", Instrument: "XYZ", Side: strategy.Buy,
		Notional: 100, Time: tradingTime,
	}, snap, quoteAt(100))
	require.False(t, d.Approved)
	assert.Equal(t, "MAX_POSITIONS", d.Reason())

	// Adding to a held instrument is not a new position.
	d = m.Review(strategy.Intent{
		ID: "i2", Strategy: "mom", Instrument: "AAPL", Side: strategy.Buy,
		Notional: 100, Time: tradingTime,
	}, snap, market.Quote{Bid: 99.99, Ask: 100.01, Last: 100, Time: tradingTime})
	assert.True(t, d.Approved)
}

func TestReviewUnknownStrategyRejected(t *testing.T) {
	t.Parallel()

	m := newManager(1.0, map[string]StrategyLimits{})
	snap := snapshotWithEquity(50000)
	m.Observe(tradingTime, snap)

	d := m.Review(strategy.Intent{
		ID: "i1", Strategy: "ghost", Instrument: "XYZ", Side: strategy.Buy,
		Notional: 100, Time: tradingTime,
	}, snap, quoteAt(100))

	require.False(t, d.Approved)
	assert.Equal(t, "UNKNOWN_STRATEGY", d.Reason())
}
