package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/tradebot/ledger"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/strategy"
)

// Policy holds portfolio-level limits.
type Policy struct {
	// MaxPortfolioRisk caps aggregate open risk as a fraction of equity.
	MaxPortfolioRisk float64

	// MaxOpenPositions caps concurrent open positions across all strategies.
	MaxOpenPositions int
}

// StrategyLimits holds per-strategy limits from config.
type StrategyLimits struct {
	RiskPerTrade float64 // max fraction of equity per trade
	MaxPositions int     // max concurrent positions this strategy may hold
}

type Violation struct {
	Code string
	Msg  string
}

// Decision is the outcome of reviewing one TradeIntent. An approved decision
// carries the (possibly resized) signed quantity and the notional reserved
// against the risk budget.
type Decision struct {
	Approved bool
	Resized  bool

	Quantity float64 // signed
	Notional float64 // absolute
	Reserved float64

	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Approved = false
}

// Reason summarizes the rejection for logs and the journal.
func (d Decision) Reason() string {
	if len(d.Violations) == 0 {
		return ""
	}
	return d.Violations[0].Code
}

// Manager validates and sizes trade intents. Checks run in a fixed order:
// circuit breaker, staleness/tradability, per-trade ceiling (resize rather
// than reject when a smaller size is viable), max concurrent positions,
// then the portfolio aggregate ceiling. A hard failure at any step means
// the intent never reaches the execution coordinator.
type Manager struct {
	policy  Policy
	limits  map[string]StrategyLimits
	budget  *Budget
	breaker *Breaker
}

func NewManager(policy Policy, limits map[string]StrategyLimits, budget *Budget, breaker *Breaker) *Manager {
	if limits == nil {
		limits = make(map[string]StrategyLimits)
	}
	return &Manager{
		policy:  policy,
		limits:  limits,
		budget:  budget,
		breaker: breaker,
	}
}

func (m *Manager) Budget() *Budget   { return m.budget }
func (m *Manager) Breaker() *Breaker { return m.breaker }

// Observe feeds the loss window and refreshes the budget ceiling; called
// once per cycle before any Review.
func (m *Manager) Observe(now time.Time, snap ledger.Snapshot) {
	m.budget.SetCeiling(m.policy.MaxPortfolioRisk * snap.Equity)
	m.breaker.ObservePL(now, snap.RealizedPL+snap.UnrealizedPL, snap.Equity)
	metricBudgetUsed.Set(m.budget.Used())
}

// Review validates one intent against the current snapshot and quote.
// On approval the corresponding risk budget is already reserved under the
// intent id; the reservation is released or committed by order lifecycle
// events, never by the manager itself.
func (m *Manager) Review(intent strategy.Intent, snap ledger.Snapshot, quote market.Quote) Decision {
	d := Decision{Approved: true}

	reduces := m.reduces(intent, snap)

	// 1. Circuit breaker: hard stop for anything that adds risk.
	if m.breaker.Tripped() && !(reduces && m.breaker.AllowCloses()) {
		d.add("CIRCUIT_BREAKER", "circuit breaker is tripped")
		metricIntentsRejected.Inc()
		return d
	}

	price := quote.Mid()
	if price <= 0 {
		d.add("NO_PRICE", fmt.Sprintf("no usable price for %s", intent.Instrument))
		metricIntentsRejected.Inc()
		return d
	}
	if quote.Stale && !reduces {
		d.add("STALE_QUOTE", fmt.Sprintf("quote for %s is stale", intent.Instrument))
		metricIntentsRejected.Inc()
		return d
	}

	meta := market.Lookup(intent.Instrument)
	if !reduces && !meta.Hours.Contains(intent.Time) {
		d.add("MARKET_CLOSED", fmt.Sprintf("%s is outside tradable hours", intent.Instrument))
		metricIntentsRejected.Inc()
		return d
	}

	qty := intent.Quantity
	if qty == 0 {
		qty = intent.Notional / price
	}
	if qty <= 0 {
		d.add("NO_QUANTITY", "intent has no quantity or notional")
		metricIntentsRejected.Inc()
		return d
	}

	// Risk-reducing orders skip sizing caps and reserve nothing; they can
	// only shrink open risk.
	if reduces {
		if pos, ok := snap.Position(intent.Instrument); ok {
			qty = math.Min(qty, math.Abs(pos.Quantity))
		}
		d.Quantity = qty * intent.Side.Sign()
		d.Notional = qty * price
		metricIntentsApproved.Inc()
		return d
	}

	lim, ok := m.limits[intent.Strategy]
	if !ok {
		d.add("UNKNOWN_STRATEGY", fmt.Sprintf("no limits configured for strategy %q", intent.Strategy))
		metricIntentsRejected.Inc()
		return d
	}

	// 2. Per-trade ceiling: resize down rather than reject when viable.
	ceiling := lim.RiskPerTrade * snap.Equity
	notional := qty * price
	if notional > ceiling {
		qty = ceiling / price
		if meta.WholeUnits {
			qty = math.Floor(qty)
		}
		notional = qty * price
		d.Resized = true
	}
	if qty < meta.MinimumTradeSize || qty <= 0 {
		d.add("TRADE_TOO_SMALL", fmt.Sprintf("resized quantity %.6f below minimum %.6f", qty, meta.MinimumTradeSize))
		metricIntentsRejected.Inc()
		return d
	}

	// 3. Max concurrent open positions; netting an existing position is
	// not a new one.
	if _, held := snap.Position(intent.Instrument); !held {
		open := snap.OpenPositions()
		if lim.MaxPositions > 0 && open+1 > lim.MaxPositions {
			d.add("MAX_POSITIONS", fmt.Sprintf("strategy at %d of %d positions", open, lim.MaxPositions))
			metricIntentsRejected.Inc()
			return d
		}
		if m.policy.MaxOpenPositions > 0 && open+1 > m.policy.MaxOpenPositions {
			d.add("MAX_PORTFOLIO_POSITIONS", fmt.Sprintf("portfolio at %d of %d positions", open, m.policy.MaxOpenPositions))
			metricIntentsRejected.Inc()
			return d
		}
	}

	// 4. Portfolio aggregate ceiling: the reservation is atomic, so the
	// budget can never be pushed past its ceiling by an approval.
	if err := m.budget.Reserve(intent.ID, notional); err != nil {
		d.add("PORTFOLIO_RISK", err.Error())
		metricIntentsRejected.Inc()
		return d
	}

	d.Quantity = qty * intent.Side.Sign()
	d.Notional = notional
	d.Reserved = notional
	metricIntentsApproved.Inc()
	if d.Resized {
		metricIntentsResized.Inc()
	}
	return d
}

// reduces reports whether the intent shrinks an existing position.
func (m *Manager) reduces(intent strategy.Intent, snap ledger.Snapshot) bool {
	if intent.Reduce {
		return true
	}
	pos, ok := snap.Position(intent.Instrument)
	if !ok {
		return false
	}
	return (pos.Quantity > 0 && intent.Side == strategy.Sell) ||
		(pos.Quantity < 0 && intent.Side == strategy.Buy)
}
