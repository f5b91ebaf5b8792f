package market

import (
	"errors"
	"sync"
	"time"
)

var ErrNoQuote = errors.New("price not found")

// Quote is the last known good price for one instrument.
type Quote struct {
	Instrument string
	Bid        float64
	Ask        float64
	Last       float64
	Time       time.Time

	// Stale marks a quote older than the board's staleness threshold. Stale
	// quotes must not seed new positions; existing positions are still
	// monitored against them.
	Stale bool
}

// Mid returns the quote midpoint, falling back to the last trade price.
func (q Quote) Mid() float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return (q.Bid + q.Ask) / 2
	}
	return q.Last
}

// QuoteBoard tracks the latest quote per instrument. Updates are
// last-writer-wins by exchange timestamp, so out-of-order delivery never
// regresses the stored price.
type QuoteBoard struct {
	mu      sync.RWMutex
	quotes  map[string]Quote
	maxAge  time.Duration // 0 disables staleness marking
	nowFunc func() time.Time
}

func NewQuoteBoard(maxAge time.Duration) *QuoteBoard {
	return &QuoteBoard{
		quotes:  make(map[string]Quote),
		maxAge:  maxAge,
		nowFunc: time.Now,
	}
}

// SetClock overrides the board's wall clock. Test hook.
func (b *QuoteBoard) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nowFunc = now
}

// Apply updates the board from a market event. It returns false when the
// event is older than (or equal to) the stored quote's timestamp and was
// discarded.
func (b *QuoteBoard) Apply(e Event) bool {
	if e.Kind == KindInterrupted || e.Instrument == "" {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.quotes[e.Instrument]
	if ok && !e.Time.After(cur.Time) {
		return false
	}

	q := Quote{
		Instrument: e.Instrument,
		Bid:        e.Bid,
		Ask:        e.Ask,
		Last:       cur.Last,
		Time:       e.Time,
	}
	if e.Price > 0 {
		q.Last = e.Price
	}
	// A trade-only event keeps the previous book.
	if q.Bid == 0 && q.Ask == 0 {
		q.Bid = cur.Bid
		q.Ask = cur.Ask
	}
	b.quotes[e.Instrument] = q
	return true
}

// Get returns the last known quote with its staleness evaluated against the
// board's clock.
func (b *QuoteBoard) Get(instrument string) (Quote, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.quotes[instrument]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	q.Stale = b.staleLocked(q)
	return q, nil
}

// Snapshot returns a copy of every tracked quote.
func (b *QuoteBoard) Snapshot() map[string]Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]Quote, len(b.quotes))
	for instr, q := range b.quotes {
		q.Stale = b.staleLocked(q)
		out[instr] = q
	}
	return out
}

func (b *QuoteBoard) staleLocked(q Quote) bool {
	if b.maxAge <= 0 {
		return false
	}
	return b.nowFunc().Sub(q.Time) > b.maxAge
}
