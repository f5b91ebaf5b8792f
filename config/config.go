// Package config loads and validates the bot configuration from YAML or
// JSON. Validation is fail-fast: a bad config stops startup, nothing is
// patched up silently.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/strategy"
)

type Config struct {
	Account    AccountConfig             `json:"account" yaml:"account"`
	Feed       FeedConfig                `json:"feed" yaml:"feed"`
	Broker     BrokerConfig              `json:"broker" yaml:"broker"`
	Risk       RiskConfig                `json:"risk" yaml:"risk"`
	Engine     EngineConfig              `json:"engine" yaml:"engine"`
	Strategies map[string]StrategyConfig `json:"strategies" yaml:"strategies"`
	Journal    JournalConfig             `json:"journal" yaml:"journal"`
}

type AccountConfig struct {
	Currency string  `json:"currency" yaml:"currency"`
	Cash     float64 `json:"cash" yaml:"cash"`
}

type FeedConfig struct {
	Source      string   `json:"source" yaml:"source"` // "stream" or "replay"
	StreamURL   string   `json:"stream_url,omitempty" yaml:"stream_url,omitempty"`
	ReplayFile  string   `json:"replay_file,omitempty" yaml:"replay_file,omitempty"`
	Instruments []string `json:"instruments" yaml:"instruments"`
	StaleAfter  string   `json:"stale_after" yaml:"stale_after"` // e.g. "10s"
}

type BrokerConfig struct {
	Venue     string `json:"venue" yaml:"venue"` // "alpaca" or "paper"
	Paper     bool   `json:"paper" yaml:"paper"` // alpaca paper endpoint
	KeyID     string `json:"key_id,omitempty" yaml:"key_id,omitempty"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
}

type RiskConfig struct {
	MaxPortfolioRisk  float64 `json:"max_portfolio_risk" yaml:"max_portfolio_risk"`
	MaxOpenPositions  int     `json:"max_open_positions" yaml:"max_open_positions"`
	StopLossPercent   float64 `json:"stop_loss_percent" yaml:"stop_loss_percent"`
	TakeProfitPercent float64 `json:"take_profit_percent" yaml:"take_profit_percent"`
	MaxLossPercent    float64 `json:"max_loss_percent" yaml:"max_loss_percent"`
	LossWindow        string  `json:"loss_window" yaml:"loss_window"` // e.g. "24h"
	RejectionLimit    int     `json:"rejection_limit" yaml:"rejection_limit"`

	// BreakerAllowCloses defaults to true: a tripped breaker still lets
	// risk-reducing orders through.
	BreakerAllowCloses *bool `json:"breaker_allow_closes,omitempty" yaml:"breaker_allow_closes,omitempty"`
}

func (r RiskConfig) AllowCloses() bool {
	if r.BreakerAllowCloses == nil {
		return true
	}
	return *r.BreakerAllowCloses
}

type EngineConfig struct {
	CycleInterval     string `json:"cycle_interval" yaml:"cycle_interval"`
	ReconcileInterval string `json:"reconcile_interval" yaml:"reconcile_interval"`
	DryRun            bool   `json:"dry_run" yaml:"dry_run"`
	MaxRetries        int    `json:"max_retries" yaml:"max_retries"`
	CancelOnShutdown  bool   `json:"cancel_on_shutdown" yaml:"cancel_on_shutdown"`
	ShutdownTimeout   string `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type StrategyConfig struct {
	Enabled      bool               `json:"enabled" yaml:"enabled"`
	Kind         string             `json:"kind" yaml:"kind"`
	RiskPerTrade float64            `json:"risk_per_trade" yaml:"risk_per_trade"`
	MaxPositions int                `json:"max_positions" yaml:"max_positions"`
	Params       map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "sqlite", "csv", or "none"
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// Default returns a runnable paper-trading configuration.
func Default() *Config {
	return &Config{
		Account: AccountConfig{Currency: "USD", Cash: 100000},
		Feed: FeedConfig{
			Source:      "stream",
			Instruments: []string{"AAPL", "SPY"},
			StaleAfter:  "10s",
		},
		Broker: BrokerConfig{Venue: "paper"},
		Risk: RiskConfig{
			MaxPortfolioRisk:  0.10,
			MaxOpenPositions:  10,
			StopLossPercent:   0.02,
			TakeProfitPercent: 0.04,
			MaxLossPercent:    0.05,
			LossWindow:        "24h",
			RejectionLimit:    5,
		},
		Engine: EngineConfig{
			CycleInterval:     "1s",
			ReconcileInterval: "1m",
			MaxRetries:        3,
			ShutdownTimeout:   "10s",
		},
		Strategies: map[string]StrategyConfig{
			"mom": {
				Enabled:      true,
				Kind:         "momentum",
				RiskPerTrade: 0.02,
				MaxPositions: 3,
			},
		},
		Journal: JournalConfig{Type: "sqlite", DBPath: "tradebot.db"},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration and rejects anything the bot cannot
// safely run with.
func (c *Config) Validate() error {
	if c.Account.Cash <= 0 {
		return fmt.Errorf("account.cash must be positive")
	}

	switch c.Feed.Source {
	case "stream":
	case "replay":
		if c.Feed.ReplayFile == "" {
			return fmt.Errorf("feed.replay_file is required for replay source")
		}
	default:
		return fmt.Errorf("feed.source must be 'stream' or 'replay'")
	}
	if len(c.Feed.Instruments) == 0 {
		return fmt.Errorf("feed.instruments must not be empty")
	}
	for _, instr := range c.Feed.Instruments {
		if _, ok := market.Instruments[instr]; !ok {
			return fmt.Errorf("unknown instrument: %s", instr)
		}
	}
	if _, err := c.StaleAfter(); err != nil {
		return fmt.Errorf("feed.stale_after: %w", err)
	}

	if c.Broker.Venue != "alpaca" && c.Broker.Venue != "paper" {
		return fmt.Errorf("broker.venue must be 'alpaca' or 'paper'")
	}

	if c.Risk.MaxPortfolioRisk <= 0 || c.Risk.MaxPortfolioRisk > 1 {
		return fmt.Errorf("risk.max_portfolio_risk must be in (0, 1]")
	}
	if c.Risk.MaxLossPercent < 0 || c.Risk.MaxLossPercent > 1 {
		return fmt.Errorf("risk.max_loss_percent must be in [0, 1]")
	}
	if c.Risk.StopLossPercent < 0 || c.Risk.TakeProfitPercent < 0 {
		return fmt.Errorf("risk stop/target percentages must not be negative")
	}
	if _, err := c.LossWindow(); err != nil {
		return fmt.Errorf("risk.loss_window: %w", err)
	}

	if _, err := c.CycleInterval(); err != nil {
		return fmt.Errorf("engine.cycle_interval: %w", err)
	}
	if _, err := c.ReconcileInterval(); err != nil {
		return fmt.Errorf("engine.reconcile_interval: %w", err)
	}
	if _, err := c.ShutdownTimeout(); err != nil {
		return fmt.Errorf("engine.shutdown_timeout: %w", err)
	}
	if c.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must not be negative")
	}

	enabled := 0
	for name, sc := range c.Strategies {
		if !sc.Enabled {
			continue
		}
		enabled++
		if sc.Kind == "" {
			return fmt.Errorf("strategy %q: kind is required", name)
		}
		if !knownKind(sc.Kind) {
			return fmt.Errorf("strategy %q: unknown kind %q (have %v)", name, sc.Kind, strategy.Kinds())
		}
		if sc.RiskPerTrade <= 0 || sc.RiskPerTrade > 1 {
			return fmt.Errorf("strategy %q: risk_per_trade must be in (0, 1]", name)
		}
		if sc.MaxPositions <= 0 {
			return fmt.Errorf("strategy %q: max_positions must be positive", name)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one strategy must be enabled")
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path is required for sqlite journal")
		}
	case "csv":
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal.dir is required for csv journal")
		}
	case "none":
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv', or 'none'")
	}

	return nil
}

func (c *Config) StaleAfter() (time.Duration, error) { return parseDur(c.Feed.StaleAfter, 10*time.Second) }
func (c *Config) LossWindow() (time.Duration, error) { return parseDur(c.Risk.LossWindow, 24*time.Hour) }

func (c *Config) CycleInterval() (time.Duration, error) {
	return parseDur(c.Engine.CycleInterval, time.Second)
}

func (c *Config) ReconcileInterval() (time.Duration, error) {
	return parseDur(c.Engine.ReconcileInterval, time.Minute)
}

func (c *Config) ShutdownTimeout() (time.Duration, error) {
	return parseDur(c.Engine.ShutdownTimeout, 10*time.Second)
}

func parseDur(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}

func knownKind(kind string) bool {
	for _, k := range strategy.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
