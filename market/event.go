package market

import "time"

type EventKind int

const (
	KindQuote EventKind = iota
	KindTrade
	KindBar
	// KindInterrupted signals a feed gap/disconnect. It carries no price and
	// must never be applied to a quote board.
	KindInterrupted
)

func (k EventKind) String() string {
	switch k {
	case KindQuote:
		return "QUOTE"
	case KindTrade:
		return "TRADE"
	case KindBar:
		return "BAR"
	case KindInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// Event is one timestamped market observation for a single instrument.
// Time is the exchange timestamp, not arrival time; events may arrive out of
// timestamp order.
type Event struct {
	Kind       EventKind
	Instrument string
	Time       time.Time

	Bid float64 // quotes
	Ask float64

	Price  float64 // last trade / bar close
	Volume float64

	Err error // set for KindInterrupted
}

// Mid returns the best available mid/reference price for the event.
func (e Event) Mid() float64 {
	if e.Bid > 0 && e.Ask > 0 {
		return (e.Bid + e.Ask) / 2
	}
	return e.Price
}
