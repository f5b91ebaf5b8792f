// Package paper implements a deterministic in-process Gateway that mirrors
// the venue's paper-trading semantics: orders fill instantly at the last
// known quote, fills carry synthetic ids, and account state is kept so that
// reconciliation against the gateway behaves like the real thing.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/internal/id"
	"github.com/rustyeddy/tradebot/market"
)

type Gateway struct {
	mu        sync.Mutex
	acct      broker.AccountSnapshot
	positions map[string]broker.PositionSnapshot
	board     *market.QuoteBoard
	updates   chan broker.OrderUpdate
	closed    bool
}

func New(acct broker.AccountSnapshot, board *market.QuoteBoard) *Gateway {
	return &Gateway{
		acct:      acct,
		positions: make(map[string]broker.PositionSnapshot),
		board:     board,
		updates:   make(chan broker.OrderUpdate, 256),
	}
}

func (g *Gateway) GetAccountSnapshot(ctx context.Context) (broker.AccountSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	acct := g.acct
	acct.Equity = acct.Cash
	for _, p := range g.positions {
		if q, err := g.board.Get(p.Instrument); err == nil {
			acct.Equity += p.Quantity * q.Mid()
		} else {
			acct.Equity += p.Quantity * p.AvgEntry
		}
	}
	acct.Time = time.Now()
	return acct, nil
}

func (g *Gateway) GetPositions(ctx context.Context) ([]broker.PositionSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]broker.PositionSnapshot, 0, len(g.positions))
	for _, p := range g.positions {
		out = append(out, p)
	}
	return out, nil
}

// SubmitOrder fills market orders immediately at the current quote: buys at
// ask, sells at bid. Limit orders fill at the limit price when marketable and
// are rejected otherwise (the paper venue does not keep a resting book).
func (g *Gateway) SubmitOrder(ctx context.Context, req broker.OrderRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return "", broker.Permanent("gateway_closed", fmt.Errorf("paper gateway is shut down"))
	}
	if req.Quantity == 0 {
		return "", broker.Permanent("zero_quantity", fmt.Errorf("order quantity must be non-zero"))
	}

	q, err := g.board.Get(req.Instrument)
	if err != nil {
		return "", broker.Permanent("no_quote", fmt.Errorf("no quote for %s: %w", req.Instrument, err))
	}

	price := q.Ask
	if req.Quantity < 0 {
		price = q.Bid
	}
	if price == 0 {
		price = q.Mid()
	}

	switch req.Type {
	case broker.Market, "":
	case broker.Limit:
		marketable := (req.Quantity > 0 && price <= req.LimitPrice) ||
			(req.Quantity < 0 && price >= req.LimitPrice)
		if !marketable {
			return "", broker.Permanent("not_marketable", fmt.Errorf("limit %.4f not marketable at %.4f", req.LimitPrice, price))
		}
		price = req.LimitPrice
	default:
		return "", broker.Permanent("unsupported_type", fmt.Errorf("paper gateway does not support %s orders", req.Type))
	}

	brokerID := id.New()
	now := time.Now()

	g.applyFillLocked(req.Instrument, req.Quantity, price)

	g.push(broker.OrderUpdate{
		Kind:     broker.UpdateAck,
		ClientID: req.ClientID,
		BrokerID: brokerID,
		Time:     now,
	})
	g.push(broker.OrderUpdate{
		Kind:     broker.UpdateFill,
		ClientID: req.ClientID,
		BrokerID: brokerID,
		FillID:   id.New(),
		Quantity: req.Quantity,
		Price:    price,
		Time:     now,
	})
	return brokerID, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, brokerID string) error {
	// Paper orders reach a terminal state at submission; nothing rests.
	return broker.Permanent("order_not_found", fmt.Errorf("order %s not open", brokerID))
}

func (g *Gateway) Updates() <-chan broker.OrderUpdate { return g.updates }

// Close stops the gateway and closes the updates channel.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.closed = true
		close(g.updates)
	}
}

func (g *Gateway) applyFillLocked(instrument string, qty, price float64) {
	g.acct.Cash -= qty * price

	p := g.positions[instrument]
	p.Instrument = instrument
	newQty := p.Quantity + qty
	switch {
	case p.Quantity == 0 || (p.Quantity > 0) == (qty > 0):
		if newQty != 0 {
			p.AvgEntry = (p.Quantity*p.AvgEntry + qty*price) / newQty
		}
	case (newQty > 0) != (p.Quantity > 0) && newQty != 0:
		// crossed through flat; remainder opens at fill price
		p.AvgEntry = price
	}
	p.Quantity = newQty
	if newQty == 0 {
		delete(g.positions, instrument)
		return
	}
	g.positions[instrument] = p
}

func (g *Gateway) push(u broker.OrderUpdate) {
	select {
	case g.updates <- u:
	default:
		// Consumer has stalled far beyond the buffer; drop rather than
		// deadlock the submitting goroutine. The ledger reconciles from
		// GetPositions on the next pass.
	}
}
