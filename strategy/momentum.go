package strategy

import (
	"fmt"

	"github.com/rustyeddy/tradebot/ledger"
	"github.com/rustyeddy/tradebot/market"
)

func init() {
	Register("momentum", func(name string, params map[string]float64) (Strategy, error) {
		return NewMomentum(MomentumConfig{
			Name:      name,
			Lookback:  int(param(params, "lookback", 20)),
			Threshold: param(params, "threshold", 0.01),
			Notional:  param(params, "notional", 1000),
		})
	})
}

type MomentumConfig struct {
	Name      string
	Lookback  int     // ticks
	Threshold float64 // fractional return over the lookback that triggers entry
	Notional  float64
}

// Momentum buys an instrument whose return over the lookback window exceeds
// the threshold and exits when the return turns negative. One entry at a
// time per instrument.
type Momentum struct {
	name    string
	cfg     MomentumConfig
	windows map[string][]float64
}

func NewMomentum(cfg MomentumConfig) (*Momentum, error) {
	if cfg.Lookback < 2 {
		return nil, fmt.Errorf("momentum: lookback must be >= 2")
	}
	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("momentum: threshold must be > 0")
	}
	if cfg.Notional <= 0 {
		return nil, fmt.Errorf("momentum: notional must be > 0")
	}
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("MOMENTUM(%d)", cfg.Lookback)
	}
	return &Momentum{
		name:    name,
		cfg:     cfg,
		windows: make(map[string][]float64),
	}, nil
}

func (m *Momentum) Name() string { return m.name }

func (m *Momentum) OnMarketEvent(e market.Event, snap ledger.Snapshot) ([]Intent, error) {
	if e.Kind == market.KindInterrupted {
		return nil, nil
	}
	px := e.Mid()
	if px <= 0 {
		return nil, nil
	}

	w := append(m.windows[e.Instrument], px)
	if len(w) > m.cfg.Lookback {
		w = w[1:]
	}
	m.windows[e.Instrument] = w
	if len(w) < m.cfg.Lookback {
		return nil, nil
	}

	ret := (px - w[0]) / w[0]
	pos, held := snap.Position(e.Instrument)

	switch {
	case !held && ret >= m.cfg.Threshold:
		return []Intent{{
			Instrument: e.Instrument,
			Side:       Buy,
			Notional:   m.cfg.Notional,
			Confidence: clamp01(ret / m.cfg.Threshold / 2),
			Reason:     fmt.Sprintf("return %.2f%% over %d ticks", ret*100, m.cfg.Lookback),
		}}, nil
	case held && pos.Quantity > 0 && ret < 0:
		return []Intent{{
			Instrument: e.Instrument,
			Side:       Sell,
			Quantity:   pos.Quantity,
			Confidence: clamp01(-ret / m.cfg.Threshold),
			Reduce:     true,
			Reason:     "momentum faded",
		}}, nil
	}
	return nil, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
