package strategy

import (
	"fmt"

	"github.com/rustyeddy/tradebot/indicators"
	"github.com/rustyeddy/tradebot/ledger"
	"github.com/rustyeddy/tradebot/market"
)

func init() {
	Register("ema_cross", func(name string, params map[string]float64) (Strategy, error) {
		return NewEMACross(EMACrossConfig{
			Name:       name,
			FastPeriod: int(param(params, "fast", 12)),
			SlowPeriod: int(param(params, "slow", 26)),
			Notional:   param(params, "notional", 1000),
			MinSpread:  param(params, "min_spread", 0),
		})
	})
}

type EMACrossConfig struct {
	Name       string
	FastPeriod int
	SlowPeriod int

	// Notional is the desired trade size in account currency. The risk
	// manager resizes it against the per-trade ceiling.
	Notional float64

	// Optional: noise filter in price units. 0 disables.
	MinSpread float64
}

// EMACross emits a buy when a fast EMA crosses above a slow EMA and a sell
// on the cross down. A small state machine tracks the previous relationship
// so a signal fires only on the cross event, not every tick while the EMAs
// stay crossed.
type EMACross struct {
	name string
	cfg  EMACrossConfig

	// per-instrument indicator state
	states map[string]*emaState
}

type emaState struct {
	fast *indicators.ExponentialMA
	slow *indicators.ExponentialMA

	// previous relationship: -1 fast below slow, 0 unknown, +1 fast above
	prevRel int
}

func NewEMACross(cfg EMACrossConfig) (*EMACross, error) {
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 {
		return nil, fmt.Errorf("ema_cross: periods must be > 0")
	}
	if cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, fmt.Errorf("ema_cross: fast period must be < slow period")
	}
	if cfg.Notional <= 0 {
		return nil, fmt.Errorf("ema_cross: notional must be > 0")
	}
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("EMA_CROSS(%d,%d)", cfg.FastPeriod, cfg.SlowPeriod)
	}
	return &EMACross{
		name:   name,
		cfg:    cfg,
		states: make(map[string]*emaState),
	}, nil
}

func (x *EMACross) Name() string { return x.name }

func (x *EMACross) OnMarketEvent(e market.Event, snap ledger.Snapshot) ([]Intent, error) {
	if e.Kind == market.KindInterrupted {
		return nil, nil
	}
	px := e.Mid()
	if px <= 0 {
		return nil, nil
	}

	st, ok := x.states[e.Instrument]
	if !ok {
		st = &emaState{
			fast: indicators.NewEMA(x.cfg.FastPeriod),
			slow: indicators.NewEMA(x.cfg.SlowPeriod),
		}
		x.states[e.Instrument] = st
	}

	st.fast.Update(px)
	st.slow.Update(px)

	if !st.fast.Ready() || !st.slow.Ready() {
		return nil, nil
	}

	diff := st.fast.Value() - st.slow.Value()
	if x.cfg.MinSpread > 0 && abs(diff) < x.cfg.MinSpread {
		return nil, nil
	}

	rel := 0
	if diff > 0 {
		rel = +1
	} else if diff < 0 {
		rel = -1
	}

	// First time ready: establish baseline relationship, don't fire.
	if st.prevRel == 0 {
		st.prevRel = rel
		return nil, nil
	}

	prev := st.prevRel
	st.prevRel = rel

	switch {
	case prev == -1 && rel == +1:
		return []Intent{{
			Instrument: e.Instrument,
			Side:       Buy,
			Notional:   x.cfg.Notional,
			Confidence: confidence(diff, px),
			Reason:     "fast EMA crossed above slow EMA",
		}}, nil
	case prev == +1 && rel == -1:
		if pos, ok := snap.Position(e.Instrument); ok && pos.Quantity > 0 {
			return []Intent{{
				Instrument: e.Instrument,
				Side:       Sell,
				Quantity:   pos.Quantity,
				Confidence: confidence(-diff, px),
				Reduce:     true,
				Reason:     "fast EMA crossed below slow EMA",
			}}, nil
		}
		return []Intent{{
			Instrument: e.Instrument,
			Side:       Sell,
			Notional:   x.cfg.Notional,
			Confidence: confidence(-diff, px),
			Reason:     "fast EMA crossed below slow EMA",
		}}, nil
	}
	return nil, nil
}

func confidence(edge, px float64) float64 {
	if px <= 0 {
		return 0
	}
	c := edge / px * 100 // percent of price
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
