// Package exec turns risk-approved intents into broker orders and folds
// venue updates back into the ledger and the risk budget.
package exec

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/tradebot/broker"
)

type State int

const (
	StatePending State = iota
	StateSubmitted
	StatePartiallyFilled
	StateFilled
	StateRejected
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateSubmitted:
		return "SUBMITTED"
	case StatePartiallyFilled:
		return "PARTIALLY_FILLED"
	case StateFilled:
		return "FILLED"
	case StateRejected:
		return "REJECTED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateFilled || s == StateRejected || s == StateCancelled
}

var ErrBadTransition = errors.New("illegal order state transition")

var transitions = map[State][]State{
	StatePending:         {StateSubmitted, StateRejected},
	StateSubmitted:       {StatePartiallyFilled, StateFilled, StateRejected, StateCancelled},
	StatePartiallyFilled: {StateFilled, StateRejected, StateCancelled},
}

// Order is the coordinator's record of one working order. Its ID doubles as
// the broker ClientID and the risk budget reservation key.
type Order struct {
	ID         string
	BrokerID   string
	Instrument string
	Strategy   string
	Quantity   float64 // signed
	Type       broker.OrderType
	LimitPrice float64

	State        State
	FilledQty    float64 // signed, accumulated
	AvgFillPrice float64

	// Reserved is the risk notional held for this order; zero for
	// risk-reducing orders, which reserve nothing.
	Reserved float64
	Reduce   bool

	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining returns the unfilled absolute quantity.
func (o *Order) Remaining() float64 {
	return math.Abs(o.Quantity) - math.Abs(o.FilledQty)
}

func (o *Order) transition(to State, at time.Time) error {
	if o.State == to {
		o.UpdatedAt = at
		return nil
	}
	for _, allowed := range transitions[o.State] {
		if allowed == to {
			o.State = to
			o.UpdatedAt = at
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s for order %s", ErrBadTransition, o.State, to, o.ID)
}
