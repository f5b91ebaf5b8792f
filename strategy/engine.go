package strategy

import (
	"fmt"
	"log"

	"github.com/rustyeddy/tradebot/internal/id"
	"github.com/rustyeddy/tradebot/ledger"
	"github.com/rustyeddy/tradebot/market"
)

type slot struct {
	strat    Strategy
	failures int
	disabled bool
}

// Engine runs registered strategies against market events. Strategies are
// isolated: a panic or error in one never stops the others, and a strategy
// failing more than maxFailures cycles in a row is disabled until restart.
type Engine struct {
	order       []string
	slots       map[string]*slot
	maxFailures int
}

func NewEngine(maxConsecutiveFailures int) *Engine {
	if maxConsecutiveFailures < 1 {
		maxConsecutiveFailures = 3
	}
	return &Engine{
		slots:       make(map[string]*slot),
		maxFailures: maxConsecutiveFailures,
	}
}

// Add registers a strategy. Registration order is the order strategies run
// in, and the tie-break order for competing intents on one instrument.
func (e *Engine) Add(s Strategy) {
	name := s.Name()
	if _, dup := e.slots[name]; dup {
		log.Printf("strategy %q already registered, ignoring duplicate", name)
		return
	}
	e.order = append(e.order, name)
	e.slots[name] = &slot{strat: s}
}

// OnMarketEvent feeds one event to every enabled strategy in registration
// order and collects their intents. Intents are not netted; portfolio-level
// conflicts are the risk manager's job.
func (e *Engine) OnMarketEvent(ev market.Event, snap ledger.Snapshot) []Intent {
	var out []Intent
	for _, name := range e.order {
		sl := e.slots[name]
		if sl.disabled {
			continue
		}

		intents, err := e.runOne(sl, ev, snap)
		if err != nil {
			sl.failures++
			log.Printf("strategy %q failed (%d/%d): %v", name, sl.failures, e.maxFailures, err)
			if sl.failures >= e.maxFailures {
				sl.disabled = true
				log.Printf("strategy %q disabled after %d consecutive failures", name, sl.failures)
			}
			continue
		}
		sl.failures = 0

		for i := range intents {
			if intents[i].ID == "" {
				intents[i].ID = id.New()
			}
			intents[i].Strategy = name
			if intents[i].Time.IsZero() {
				intents[i].Time = ev.Time
			}
		}
		out = append(out, intents...)
	}
	return out
}

func (e *Engine) runOne(sl *slot, ev market.Event, snap ledger.Snapshot) (intents []Intent, err error) {
	defer func() {
		if r := recover(); r != nil {
			intents = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sl.strat.OnMarketEvent(ev, snap)
}

// Disabled lists strategies auto-disabled by repeated failures.
func (e *Engine) Disabled() []string {
	var out []string
	for _, name := range e.order {
		if e.slots[name].disabled {
			out = append(out, name)
		}
	}
	return out
}

// Names lists strategies in registration order.
func (e *Engine) Names() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}
