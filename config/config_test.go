package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
account:
  currency: USD
  cash: 50000
feed:
  source: stream
  instruments: [AAPL, SPY]
  stale_after: 5s
broker:
  venue: paper
risk:
  max_portfolio_risk: 0.1
  max_open_positions: 10
  max_loss_percent: 0.05
  loss_window: 12h
  rejection_limit: 5
engine:
  cycle_interval: 500ms
strategies:
  mom:
    enabled: true
    kind: momentum
    risk_per_trade: 0.02
    max_positions: 3
    params:
      lookback: 20
journal:
  type: none
`

func TestLoadFromFileYAML(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromFile(writeConfig(t, "bot.yaml", validYAML))
	require.NoError(t, err)

	assert.InDelta(t, 50000.0, cfg.Account.Cash, 1e-9)
	assert.Equal(t, []string{"AAPL", "SPY"}, cfg.Feed.Instruments)

	stale, err := cfg.StaleAfter()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, stale)

	window, err := cfg.LossWindow()
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, window)

	cycle, err := cfg.CycleInterval()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cycle)

	assert.True(t, cfg.Risk.AllowCloses(), "allow_closes defaults to true")
	assert.InDelta(t, 20.0, cfg.Strategies["mom"].Params["lookback"], 1e-9)
}

func TestLoadFromFileJSON(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromFile(writeConfig(t, "bot.json", `{
		"account": {"currency": "USD", "cash": 25000},
		"feed": {"source": "stream", "instruments": ["AAPL"]},
		"broker": {"venue": "paper"},
		"risk": {"max_portfolio_risk": 0.2},
		"strategies": {
			"x": {"enabled": true, "kind": "ema_cross", "risk_per_trade": 0.01, "max_positions": 2}
		},
		"journal": {"type": "none"}
	}`))
	require.NoError(t, err)
	assert.InDelta(t, 25000.0, cfg.Account.Cash, 1e-9)
	assert.Equal(t, "ema_cross", cfg.Strategies["x"].Kind)
}

func TestDefaultConfigValidates(t *testing.T) {
	t.Parallel()
	require.NoError(t, Default().Validate())
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no cash", func(c *Config) { c.Account.Cash = 0 }, "account.cash"},
		{"bad source", func(c *Config) { c.Feed.Source = "magic" }, "feed.source"},
		{"replay without file", func(c *Config) { c.Feed.Source = "replay"; c.Feed.ReplayFile = "" }, "replay_file"},
		{"unknown instrument", func(c *Config) { c.Feed.Instruments = []string{"NOPE"} }, "unknown instrument"},
		{"bad stale_after", func(c *Config) { c.Feed.StaleAfter = "soon" }, "stale_after"},
		{"bad venue", func(c *Config) { c.Broker.Venue = "nyse" }, "broker.venue"},
		{"portfolio risk too big", func(c *Config) { c.Risk.MaxPortfolioRisk = 1.5 }, "max_portfolio_risk"},
		{"bad loss window", func(c *Config) { c.Risk.LossWindow = "-1h" }, "loss_window"},
		{"bad cycle interval", func(c *Config) { c.Engine.CycleInterval = "often" }, "cycle_interval"},
		{"unknown kind", func(c *Config) {
			s := c.Strategies["mom"]
			s.Kind = "astrology"
			c.Strategies["mom"] = s
		}, "unknown kind"},
		{"risk per trade zero", func(c *Config) {
			s := c.Strategies["mom"]
			s.RiskPerTrade = 0
			c.Strategies["mom"] = s
		}, "risk_per_trade"},
		{"nothing enabled", func(c *Config) { c.Strategies = nil }, "at least one strategy"},
		{"sqlite without path", func(c *Config) { c.Journal.DBPath = "" }, "db_path"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestAllowClosesExplicitFalse(t *testing.T) {
	t.Parallel()

	no := false
	cfg := Default()
	cfg.Risk.BreakerAllowCloses = &no
	assert.False(t, cfg.Risk.AllowCloses())
}

func TestLoadFromFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
