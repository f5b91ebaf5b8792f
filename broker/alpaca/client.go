package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rustyeddy/tradebot/broker"
)

const (
	// PaperURL is the URL for Alpaca's paper-trading environment
	PaperURL = "https://paper-api.alpaca.markets"
	// LiveURL is the URL for Alpaca's live trading environment
	LiveURL = "https://api.alpaca.markets"

	// PaperStreamURL carries order-status/fill events for paper accounts
	PaperStreamURL = "wss://paper-api.alpaca.markets/stream"
	// LiveStreamURL carries order-status/fill events for live accounts
	LiveStreamURL = "wss://api.alpaca.markets/stream"
)

// Client is an Alpaca trading API gateway. REST calls cover account,
// positions, and order entry; order-status and fill events arrive over the
// websocket stream (stream.go).
type Client struct {
	baseURL    string
	streamURL  string
	keyID      string
	secretKey  string
	httpClient *http.Client

	updates chan broker.OrderUpdate
}

// NewClient creates a new Alpaca API client.
func NewClient(keyID, secretKey string, paper bool) *Client {
	baseURL, streamURL := LiveURL, LiveStreamURL
	if paper {
		baseURL, streamURL = PaperURL, PaperStreamURL
	}

	return &Client{
		baseURL:   baseURL,
		streamURL: streamURL,
		keyID:     keyID,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		updates: make(chan broker.OrderUpdate, 256),
	}
}

type apiAccount struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
	Cash     string `json:"cash"`
	Equity   string `json:"equity"`
}

func (c *Client) GetAccountSnapshot(ctx context.Context) (broker.AccountSnapshot, error) {
	var acct apiAccount
	if err := c.get(ctx, "/v2/account", &acct); err != nil {
		return broker.AccountSnapshot{}, err
	}
	return broker.AccountSnapshot{
		ID:       acct.ID,
		Currency: acct.Currency,
		Cash:     parseFloat(acct.Cash),
		Equity:   parseFloat(acct.Equity),
		Time:     time.Now(),
	}, nil
}

type apiPosition struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	AvgEntryPrice string `json:"avg_entry_price"`
}

func (c *Client) GetPositions(ctx context.Context) ([]broker.PositionSnapshot, error) {
	var raw []apiPosition
	if err := c.get(ctx, "/v2/positions", &raw); err != nil {
		return nil, err
	}

	out := make([]broker.PositionSnapshot, 0, len(raw))
	for _, p := range raw {
		qty := parseFloat(p.Qty)
		if p.Side == "short" && qty > 0 {
			qty = -qty
		}
		out = append(out, broker.PositionSnapshot{
			Instrument: p.Symbol,
			Quantity:   qty,
			AvgEntry:   parseFloat(p.AvgEntryPrice),
		})
	}
	return out, nil
}

type apiOrderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	LimitPrice    string `json:"limit_price,omitempty"`
	StopPrice     string `json:"stop_price,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

type apiOrder struct {
	ID string `json:"id"`
}

func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (string, error) {
	side := "buy"
	if req.Quantity < 0 {
		side = "sell"
	}
	typ := string(req.Type)
	if typ == "" {
		typ = string(broker.Market)
	}

	body := apiOrderRequest{
		Symbol:        req.Instrument,
		Qty:           strconv.FormatFloat(math.Abs(req.Quantity), 'f', -1, 64),
		Side:          side,
		Type:          typ,
		TimeInForce:   "day",
		ClientOrderID: req.ClientID,
	}
	if req.LimitPrice > 0 {
		body.LimitPrice = strconv.FormatFloat(req.LimitPrice, 'f', -1, 64)
	}
	if req.StopPrice > 0 {
		body.StopPrice = strconv.FormatFloat(req.StopPrice, 'f', -1, 64)
	}

	var placed apiOrder
	if err := c.post(ctx, "/v2/orders", body, &placed); err != nil {
		return "", err
	}
	return placed.ID, nil
}

func (c *Client) CancelOrder(ctx context.Context, brokerID string) error {
	return c.do(ctx, http.MethodDelete, "/v2/orders/"+brokerID, nil, nil)
}

func (c *Client) Updates() <-chan broker.OrderUpdate { return c.updates }

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return broker.Permanent("encode", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return broker.Permanent("request", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.keyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return broker.Transient("network", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("alpaca: %s %s: status %d: %s", method, path, resp.StatusCode, data)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return broker.Transient(strconv.Itoa(resp.StatusCode), err)
		}
		return broker.Permanent(strconv.Itoa(resp.StatusCode), err)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return broker.Permanent("decode", err)
	}
	return nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
