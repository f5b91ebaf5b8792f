package feed

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rustyeddy/tradebot/internal/backoff"
	"github.com/rustyeddy/tradebot/market"
)

// DataURL is the Alpaca IEX market data stream.
const DataURL = "wss://stream.data.alpaca.markets/v2/iex"

type wsAuth struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

type wsSubscribe struct {
	Action string   `json:"action"`
	Quotes []string `json:"quotes"`
	Trades []string `json:"trades"`
}

type wsMsg struct {
	Type      string  `json:"T"`
	Symbol    string  `json:"S"`
	BidPrice  float64 `json:"bp"`
	AskPrice  float64 `json:"ap"`
	Price     float64 `json:"p"`
	Size      float64 `json:"s"`
	Timestamp string  `json:"t"`
}

// StreamFeed subscribes to the live quote and trade stream for a set of
// instruments. A dropped connection emits one FeedInterrupted event and
// reconnects with jittered exponential backoff; the downstream quote board's
// last-writer-wins rule absorbs any replays after reconnect.
type StreamFeed struct {
	url         string
	key, secret string
	instruments []string
	events      chan market.Event
}

func NewStream(url, key, secret string, instruments []string) *StreamFeed {
	if url == "" {
		url = DataURL
	}
	return &StreamFeed{
		url:         url,
		key:         key,
		secret:      secret,
		instruments: instruments,
		events:      make(chan market.Event, 256),
	}
}

func (s *StreamFeed) Events() <-chan market.Event { return s.events }

func (s *StreamFeed) Run(ctx context.Context) error {
	defer close(s.events)

	bo := backoff.Default()
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.streamOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case s.events <- market.Event{Kind: market.KindInterrupted, Time: time.Now(), Err: err}:
		case <-ctx.Done():
			return ctx.Err()
		}

		attempt++
		wait := bo.Next(attempt)
		log.Printf("feed: stream interrupted: %v (reconnect in %s)", err, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (s *StreamFeed) streamOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsAuth{Action: "auth", Key: s.key, Secret: s.secret}); err != nil {
		return err
	}
	if err := conn.WriteJSON(wsSubscribe{Action: "subscribe", Quotes: s.instruments, Trades: s.instruments}); err != nil {
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

		var msgs []wsMsg
		if err := json.Unmarshal(data, &msgs); err != nil {
			log.Printf("feed: bad stream message: %v", err)
			continue
		}

		for _, m := range msgs {
			e, ok := mapMessage(m)
			if !ok {
				continue
			}
			select {
			case s.events <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func mapMessage(m wsMsg) (market.Event, bool) {
	e := market.Event{Instrument: m.Symbol, Time: parseTime(m.Timestamp)}

	switch m.Type {
	case "q":
		e.Kind = market.KindQuote
		e.Bid = m.BidPrice
		e.Ask = m.AskPrice
	case "t":
		e.Kind = market.KindTrade
		e.Price = m.Price
		e.Volume = m.Size
	default:
		return market.Event{}, false
	}
	return e, true
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Now()
}
