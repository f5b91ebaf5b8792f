package broker

import (
	"context"
	"time"
)

// AccountSnapshot is the venue's authoritative view of the account.
type AccountSnapshot struct {
	ID       string
	Currency string
	Cash     float64
	Equity   float64
	Time     time.Time
}

// PositionSnapshot is the venue's view of one holding.
type PositionSnapshot struct {
	Instrument string
	Quantity   float64 // signed
	AvgEntry   float64
}

type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
	Stop   OrderType = "stop"
)

// OrderRequest is a risk-approved order handed to the venue.
// ClientID is our order id and must round-trip on every update.
type OrderRequest struct {
	ClientID   string
	Instrument string
	Quantity   float64 // signed: >0 buy, <0 sell
	Type       OrderType
	LimitPrice float64
	StopPrice  float64
}

type UpdateKind int

const (
	UpdateAck UpdateKind = iota
	UpdateFill
	UpdateCancelled
	UpdateRejected
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateAck:
		return "ACK"
	case UpdateFill:
		return "FILL"
	case UpdateCancelled:
		return "CANCELLED"
	case UpdateRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// OrderUpdate is an order-status or fill event from the venue. The venue may
// redeliver updates; FillID is the dedupe key for fills.
type OrderUpdate struct {
	Kind     UpdateKind
	ClientID string
	BrokerID string
	FillID   string
	Quantity float64 // signed fill quantity
	Price    float64
	Reason   string
	Time     time.Time
}

// Gateway is the brokerage execution venue. Transport mechanics
// (auth, transport-level retries, rate-limit backoff) live behind it;
// errors it returns are already classified transient or permanent.
type Gateway interface {
	GetAccountSnapshot(ctx context.Context) (AccountSnapshot, error)
	GetPositions(ctx context.Context) ([]PositionSnapshot, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (string, error)
	CancelOrder(ctx context.Context, brokerID string) error

	// Updates yields order-status and fill events. The channel is owned by
	// the gateway and closed when the gateway shuts down.
	Updates() <-chan OrderUpdate
}
