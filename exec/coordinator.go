package exec

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/internal/backoff"
	"github.com/rustyeddy/tradebot/internal/id"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/rustyeddy/tradebot/ledger"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/risk"
	"github.com/rustyeddy/tradebot/strategy"
)

const fillEpsilon = 1e-9

type Config struct {
	// DryRun short-circuits the gateway: orders reach a deterministic
	// terminal state synthesized from the quote board and the venue is
	// never called.
	DryRun bool

	// MaxRetries bounds transient submission retries. 0 means submit once.
	MaxRetries int

	Backoff backoff.Backoff
}

// Coordinator owns the order lifecycle. It is driven by the control loop
// (the single writer); the mutex exists so status readers can inspect open
// orders concurrently.
type Coordinator struct {
	mu      sync.Mutex
	cfg     Config
	gateway broker.Gateway
	book    *ledger.Ledger
	risk    *risk.Manager
	journal journal.Journal
	board   *market.QuoteBoard
	orders  map[string]*Order

	nowFunc func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewCoordinator(cfg Config, gw broker.Gateway, book *ledger.Ledger, rm *risk.Manager, jnl journal.Journal, board *market.QuoteBoard) *Coordinator {
	if jnl == nil {
		jnl = journal.Nop{}
	}
	return &Coordinator{
		cfg:     cfg,
		gateway: gw,
		book:    book,
		risk:    rm,
		journal: jnl,
		board:   board,
		orders:  make(map[string]*Order),
		nowFunc: time.Now,
		sleep:   ctxSleep,
	}
}

// Submit sends one approved intent to the venue. Transient submission
// failures retry with backoff up to the configured bound; permanent
// failures reject immediately and release the budget reservation.
func (c *Coordinator) Submit(ctx context.Context, intent strategy.Intent, d risk.Decision) (*Order, error) {
	if !d.Approved {
		return nil, fmt.Errorf("intent %s was not approved: %s", intent.ID, d.Reason())
	}

	now := c.nowFunc()
	o := &Order{
		ID:         intent.ID,
		Instrument: intent.Instrument,
		Strategy:   intent.Strategy,
		Quantity:   d.Quantity,
		Type:       broker.Market,
		State:      StatePending,
		Reserved:   d.Reserved,
		Reduce:     d.Reserved == 0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	c.mu.Lock()
	c.orders[o.ID] = o
	metricOrdersOpen.Inc()
	c.mu.Unlock()
	c.journalOrder(o)

	if c.cfg.DryRun {
		return o, c.fillDryRun(o)
	}

	req := broker.OrderRequest{
		ClientID:   o.ID,
		Instrument: o.Instrument,
		Quantity:   o.Quantity,
		Type:       o.Type,
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metricSubmitRetries.Inc()
			if err := c.sleep(ctx, c.cfg.Backoff.Next(attempt)); err != nil {
				c.reject(o, "submission aborted: "+err.Error())
				return o, err
			}
		}

		brokerID, err := c.gateway.SubmitOrder(ctx, req)
		if err == nil {
			c.mu.Lock()
			o.BrokerID = brokerID
			err = o.transition(StateSubmitted, c.nowFunc())
			c.mu.Unlock()
			if err != nil {
				return o, err
			}
			metricOrdersSubmitted.Inc()
			c.journalOrder(o)
			return o, nil
		}

		lastErr = err
		if !broker.IsTransient(err) {
			c.reject(o, err.Error())
			return o, err
		}
		log.Printf("submit %s attempt %d failed (transient): %v", o.ID, attempt+1, err)
	}

	c.reject(o, fmt.Sprintf("retries exhausted: %v", lastErr))
	return o, fmt.Errorf("submit %s: retries exhausted: %w", o.ID, lastErr)
}

// fillDryRun walks the order straight to Filled against the quote board.
func (c *Coordinator) fillDryRun(o *Order) error {
	q, err := c.board.Get(o.Instrument)
	if err != nil {
		c.reject(o, "dry run: "+err.Error())
		return err
	}

	price := q.Ask
	if o.Quantity < 0 {
		price = q.Bid
	}
	if price <= 0 {
		price = q.Mid()
	}

	now := c.nowFunc()
	c.mu.Lock()
	o.BrokerID = "dry-" + o.ID
	if err := o.transition(StateSubmitted, now); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	c.journalOrder(o)

	c.Process(broker.OrderUpdate{
		Kind:     broker.UpdateFill,
		ClientID: o.ID,
		BrokerID: o.BrokerID,
		FillID:   "dry-" + id.New(),
		Quantity: o.Quantity,
		Price:    price,
		Time:     now,
	})
	return nil
}

// Process folds one venue update into the order, the ledger, the budget,
// and the journal. Redelivered fills are no-ops.
func (c *Coordinator) Process(u broker.OrderUpdate) {
	c.mu.Lock()
	o, ok := c.orders[u.ClientID]
	c.mu.Unlock()
	if !ok {
		log.Printf("update for unknown order %s (%s), ignoring", u.ClientID, u.Kind)
		return
	}

	switch u.Kind {
	case broker.UpdateAck:
		c.mu.Lock()
		if u.BrokerID != "" {
			o.BrokerID = u.BrokerID
		}
		err := o.transition(StateSubmitted, c.nowFunc())
		c.mu.Unlock()
		if err != nil {
			log.Printf("ack for %s: %v", o.ID, err)
			return
		}
		c.risk.Breaker().NoteAccepted()
		c.journalOrder(o)

	case broker.UpdateFill:
		c.applyFill(o, u)

	case broker.UpdateCancelled:
		c.mu.Lock()
		err := o.transition(StateCancelled, c.nowFunc())
		c.mu.Unlock()
		if err != nil {
			log.Printf("cancel for %s: %v", o.ID, err)
			return
		}
		// Whatever the fills did not commit comes back to the budget.
		c.risk.Budget().Release(o.ID)
		metricOrdersCancelled.Inc()
		metricOrdersOpen.Dec()
		c.journalOrder(o)

	case broker.UpdateRejected:
		c.risk.Breaker().NoteRejection()
		c.reject(o, u.Reason)
	}
}

func (c *Coordinator) applyFill(o *Order, u broker.OrderUpdate) {
	applied := c.book.ApplyFill(ledger.Fill{
		ID:         u.FillID,
		OrderID:    u.ClientID,
		Instrument: o.Instrument,
		Quantity:   u.Quantity,
		Price:      u.Price,
		Time:       u.Time,
	})
	if !applied {
		log.Printf("duplicate fill %s for order %s, ignoring", u.FillID, o.ID)
		return
	}

	notional := math.Abs(u.Quantity) * u.Price
	if o.Reduce {
		c.risk.Budget().Free(o.Instrument, notional)
	} else {
		c.risk.Budget().Commit(o.ID, o.Instrument, notional)
	}
	c.risk.Breaker().NoteAccepted()

	if err := c.journal.RecordFill(journal.FillRecord{
		ID:         u.FillID,
		OrderID:    o.ID,
		Instrument: o.Instrument,
		Quantity:   u.Quantity,
		Price:      u.Price,
		Time:       u.Time,
	}); err != nil {
		log.Printf("journal fill %s: %v", u.FillID, err)
	}

	c.mu.Lock()
	prevAbs := math.Abs(o.FilledQty)
	fillAbs := math.Abs(u.Quantity)
	if prevAbs+fillAbs > 0 {
		o.AvgFillPrice = (o.AvgFillPrice*prevAbs + u.Price*fillAbs) / (prevAbs + fillAbs)
	}
	o.FilledQty += u.Quantity

	next := StatePartiallyFilled
	if o.Remaining() <= fillEpsilon {
		next = StateFilled
	}
	err := o.transition(next, c.nowFunc())
	c.mu.Unlock()
	if err != nil {
		log.Printf("fill for %s: %v", o.ID, err)
		return
	}

	if next == StateFilled {
		c.risk.Budget().Release(o.ID)
		metricOrdersFilled.Inc()
		metricOrdersOpen.Dec()
	}
	c.journalOrder(o)
}

func (c *Coordinator) reject(o *Order, reason string) {
	c.mu.Lock()
	o.Reason = reason
	err := o.transition(StateRejected, c.nowFunc())
	c.mu.Unlock()
	if err != nil {
		log.Printf("reject for %s: %v", o.ID, err)
		return
	}
	c.risk.Budget().Release(o.ID)
	metricOrdersRejected.Inc()
	metricOrdersOpen.Dec()
	c.journalOrder(o)
}

// CancelOpen asks the venue to cancel every non-terminal order. Terminal
// confirmation still arrives through Process.
func (c *Coordinator) CancelOpen(ctx context.Context) error {
	var errs []error
	for _, o := range c.OpenOrders() {
		if o.BrokerID == "" {
			continue
		}
		if err := c.gateway.CancelOrder(ctx, o.BrokerID); err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", o.ID, err))
		}
	}
	return errors.Join(errs...)
}

// OpenOrders returns copies of every non-terminal order.
func (c *Coordinator) OpenOrders() []Order {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Order
	for _, o := range c.orders {
		if !o.State.Terminal() {
			out = append(out, *o)
		}
	}
	return out
}

// Outstanding returns the number of non-terminal orders.
func (c *Coordinator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, o := range c.orders {
		if !o.State.Terminal() {
			n++
		}
	}
	return n
}

// Get returns a copy of the order with the given id.
func (c *Coordinator) Get(orderID string) (Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func (c *Coordinator) journalOrder(o *Order) {
	c.mu.Lock()
	rec := journal.OrderRecord{
		ID:           o.ID,
		BrokerID:     o.BrokerID,
		Instrument:   o.Instrument,
		Strategy:     o.Strategy,
		Quantity:     o.Quantity,
		FilledQty:    o.FilledQty,
		AvgFillPrice: o.AvgFillPrice,
		State:        o.State.String(),
		Reason:       o.Reason,
		Time:         o.UpdatedAt,
	}
	c.mu.Unlock()

	if err := c.journal.RecordOrder(rec); err != nil {
		log.Printf("journal order %s: %v", rec.ID, err)
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
