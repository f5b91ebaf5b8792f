// Package ledger keeps the in-memory view of holdings, cash, and realized
// P/L. It is a cache of the venue's account: fills mutate it, and
// Reconcile corrects it to the venue's snapshot whenever they disagree.
package ledger

import (
	"math"
	"sync"
	"time"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/market"
)

type Position struct {
	Instrument   string
	Quantity     float64 // signed
	AvgEntry     float64
	MarkPrice    float64
	UnrealizedPL float64
	StaleMark    bool // mark price came from a stale quote
	OpenedAt     time.Time
}

// Fill is a venue-confirmed execution against an order. ID is the venue's
// fill/execution id and is the idempotency key.
type Fill struct {
	ID         string
	OrderID    string
	Instrument string
	Quantity   float64 // signed
	Price      float64
	Time       time.Time
}

// Snapshot is a consistent point-in-time copy handed to strategies and risk
// checks. Mutating it has no effect on the ledger.
type Snapshot struct {
	Time         time.Time
	Cash         float64
	Equity       float64
	RealizedPL   float64
	UnrealizedPL float64
	Positions    map[string]Position
}

func (s Snapshot) Position(instrument string) (Position, bool) {
	p, ok := s.Positions[instrument]
	return p, ok
}

func (s Snapshot) OpenPositions() int { return len(s.Positions) }

type Ledger struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]*Position
	seenFills map[string]struct{}
	realized  float64
	equity    float64
}

func New(cash float64) *Ledger {
	return &Ledger{
		cash:      cash,
		equity:    cash,
		positions: make(map[string]*Position),
		seenFills: make(map[string]struct{}),
	}
}

// ApplyFill applies one confirmed fill. It is idempotent per fill id:
// redelivered fills return false and change nothing.
func (l *Ledger) ApplyFill(f Fill) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f.ID != "" {
		if _, dup := l.seenFills[f.ID]; dup {
			return false
		}
		l.seenFills[f.ID] = struct{}{}
	}

	l.cash -= f.Quantity * f.Price

	p, ok := l.positions[f.Instrument]
	if !ok {
		p = &Position{Instrument: f.Instrument, OpenedAt: f.Time}
		l.positions[f.Instrument] = p
	}

	oldQty := p.Quantity
	newQty := oldQty + f.Quantity

	switch {
	case oldQty == 0 || sameSign(oldQty, f.Quantity):
		if newQty != 0 {
			p.AvgEntry = (oldQty*p.AvgEntry + f.Quantity*f.Price) / newQty
		}
	default:
		closed := math.Min(math.Abs(f.Quantity), math.Abs(oldQty))
		dir := 1.0
		if oldQty < 0 {
			dir = -1.0
		}
		l.realized += closed * (f.Price - p.AvgEntry) * dir
		if !sameSign(newQty, oldQty) && newQty != 0 {
			// crossed through flat; remainder opens at the fill price
			p.AvgEntry = f.Price
			p.OpenedAt = f.Time
		}
	}

	p.Quantity = newQty
	if newQty == 0 {
		delete(l.positions, f.Instrument)
	}
	return true
}

// MarkToMarket revalues every position against the given quotes and
// recomputes equity. Positions marked against stale quotes carry the
// StaleMark flag so downstream checks can tell.
func (l *Ledger) MarkToMarket(quotes map[string]market.Quote) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.equity = l.cash
	for instr, p := range l.positions {
		q, ok := quotes[instr]
		if ok {
			mark := q.Bid
			if p.Quantity < 0 {
				mark = q.Ask
			}
			if mark == 0 {
				mark = q.Mid()
			}
			p.MarkPrice = mark
			p.StaleMark = q.Stale
		} else if p.MarkPrice == 0 {
			p.MarkPrice = p.AvgEntry
			p.StaleMark = true
		}
		p.UnrealizedPL = p.Quantity * (p.MarkPrice - p.AvgEntry)
		l.equity += p.Quantity * p.MarkPrice
	}
}

// Snapshot returns a consistent copy of the ledger state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Time:       time.Now(),
		Cash:       l.cash,
		Equity:     l.equity,
		RealizedPL: l.realized,
		Positions:  make(map[string]Position, len(l.positions)),
	}
	for instr, p := range l.positions {
		snap.Positions[instr] = *p
		snap.UnrealizedPL += p.UnrealizedPL
	}
	return snap
}

// Mismatch describes one correction made during reconciliation.
type Mismatch struct {
	Instrument string // empty for cash
	Field      string
	Local      float64
	Venue      float64
}

// Reconcile diffs the ledger against the venue's snapshot and corrects local
// state to match. The venue is the source of truth for positions and cash.
// It returns the corrections applied, in no particular order.
func (l *Ledger) Reconcile(acct broker.AccountSnapshot, positions []broker.PositionSnapshot) []Mismatch {
	l.mu.Lock()
	defer l.mu.Unlock()

	var fixes []Mismatch

	if !closeEnough(l.cash, acct.Cash) {
		fixes = append(fixes, Mismatch{Field: "cash", Local: l.cash, Venue: acct.Cash})
		l.cash = acct.Cash
	}

	seen := make(map[string]struct{}, len(positions))
	for _, vp := range positions {
		seen[vp.Instrument] = struct{}{}
		p, ok := l.positions[vp.Instrument]
		if !ok {
			fixes = append(fixes, Mismatch{Instrument: vp.Instrument, Field: "quantity", Local: 0, Venue: vp.Quantity})
			l.positions[vp.Instrument] = &Position{
				Instrument: vp.Instrument,
				Quantity:   vp.Quantity,
				AvgEntry:   vp.AvgEntry,
				OpenedAt:   time.Now(),
			}
			continue
		}
		if !closeEnough(p.Quantity, vp.Quantity) {
			fixes = append(fixes, Mismatch{Instrument: vp.Instrument, Field: "quantity", Local: p.Quantity, Venue: vp.Quantity})
			p.Quantity = vp.Quantity
		}
		if !closeEnough(p.AvgEntry, vp.AvgEntry) {
			fixes = append(fixes, Mismatch{Instrument: vp.Instrument, Field: "avg_entry", Local: p.AvgEntry, Venue: vp.AvgEntry})
			p.AvgEntry = vp.AvgEntry
		}
	}

	for instr, p := range l.positions {
		if _, ok := seen[instr]; !ok {
			fixes = append(fixes, Mismatch{Instrument: instr, Field: "quantity", Local: p.Quantity, Venue: 0})
			delete(l.positions, instr)
		}
	}
	return fixes
}

// RealizedPL returns realized P/L since the last session reset.
func (l *Ledger) RealizedPL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized
}

// ResetSession zeroes realized P/L at an explicit session boundary.
func (l *Ledger) ResetSession() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.realized = 0
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
