package strategy

import (
	"fmt"
	"sort"
	"time"

	"github.com/rustyeddy/tradebot/ledger"
	"github.com/rustyeddy/tradebot/market"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// Sign returns +1 for Buy, -1 for Sell.
func (s Side) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

// Intent is an unvalidated desired trade produced by exactly one strategy.
// It is immutable after creation and consumed once by the risk manager.
type Intent struct {
	ID         string
	Strategy   string
	Instrument string
	Side       Side
	Notional   float64 // desired notional in account currency (0 if Quantity set)
	Quantity   float64 // desired quantity (0 if Notional set)
	Confidence float64 // 0..1 signal strength
	Reduce     bool    // closes or reduces an existing position
	Reason     string
	Time       time.Time
}

// Strategy turns market events into trade intents. OnMarketEvent must not
// mutate the snapshot; it receives a copy.
type Strategy interface {
	Name() string
	OnMarketEvent(e market.Event, snap ledger.Snapshot) ([]Intent, error)
}

// Factory builds a strategy instance from config params.
type Factory func(name string, params map[string]float64) (Strategy, error)

var registry = make(map[string]Factory)

// Register adds a strategy factory under a config key.
func Register(kind string, f Factory) {
	registry[kind] = f
}

// Build constructs a registered strategy.
func Build(kind, name string, params map[string]float64) (Strategy, error) {
	f, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown strategy kind %q (have %v)", kind, Kinds())
	}
	return f(name, params)
}

// Kinds lists registered strategy kinds, sorted.
func Kinds() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func param(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}
	return def
}
