package alpaca

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/internal/backoff"
)

type streamAuth struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type streamListen struct {
	Action string `json:"action"`
	Data   struct {
		Streams []string `json:"streams"`
	} `json:"data"`
}

type streamMsg struct {
	Stream string `json:"stream"`
	Data   struct {
		Event       string `json:"event"`
		ExecutionID string `json:"execution_id"`
		Price       string `json:"price"`
		Qty         string `json:"qty"`
		Timestamp   string `json:"timestamp"`
		Order       struct {
			ID            string `json:"id"`
			ClientOrderID string `json:"client_order_id"`
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
		} `json:"order"`
	} `json:"data"`
}

// StreamUpdates connects to the trade-updates stream and pumps order events
// into Updates(). Disconnects reconnect with jittered exponential backoff;
// the loop only exits when ctx is done.
func (c *Client) StreamUpdates(ctx context.Context) error {
	bo := backoff.Default()
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			close(c.updates)
			return err
		}

		err := c.streamOnce(ctx)
		if ctx.Err() != nil {
			close(c.updates)
			return ctx.Err()
		}

		attempt++
		wait := bo.Next(attempt)
		log.Printf("alpaca: trade update stream interrupted: %v (reconnect in %s)", err, wait)

		select {
		case <-ctx.Done():
			close(c.updates)
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) streamOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(streamAuth{Action: "auth", Key: c.keyID, Secret: c.secretKey}); err != nil {
		return err
	}
	listen := streamListen{Action: "listen"}
	listen.Data.Streams = []string{"trade_updates"}
	if err := conn.WriteJSON(listen); err != nil {
		return err
	}

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg streamMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("alpaca: bad stream message: %v", err)
			continue
		}
		if msg.Stream != "trade_updates" {
			continue
		}

		u, ok := c.mapUpdate(msg)
		if !ok {
			continue
		}
		select {
		case c.updates <- u:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) mapUpdate(msg streamMsg) (broker.OrderUpdate, bool) {
	d := msg.Data
	u := broker.OrderUpdate{
		ClientID: d.Order.ClientOrderID,
		BrokerID: d.Order.ID,
		Time:     parseStreamTime(d.Timestamp),
	}

	switch d.Event {
	case "new", "accepted", "pending_new":
		u.Kind = broker.UpdateAck
	case "fill", "partial_fill":
		u.Kind = broker.UpdateFill
		u.FillID = d.ExecutionID
		qty := parseFloat(d.Qty)
		if d.Order.Side == "sell" {
			qty = -math.Abs(qty)
		}
		u.Quantity = qty
		u.Price = parseFloat(d.Price)
	case "canceled", "expired":
		u.Kind = broker.UpdateCancelled
		u.Reason = d.Event
	case "rejected":
		u.Kind = broker.UpdateRejected
		u.Reason = d.Event
	default:
		return broker.OrderUpdate{}, false
	}
	return u, true
}

func parseStreamTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Now()
}
