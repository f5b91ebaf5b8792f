package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/broker/alpaca"
	"github.com/rustyeddy/tradebot/broker/paper"
	"github.com/rustyeddy/tradebot/config"
	"github.com/rustyeddy/tradebot/engine"
	"github.com/rustyeddy/tradebot/exec"
	"github.com/rustyeddy/tradebot/feed"
	"github.com/rustyeddy/tradebot/internal/backoff"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/rustyeddy/tradebot/ledger"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/risk"
	"github.com/rustyeddy/tradebot/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading bot from a config file",
	Long: `Run the decision loop using settings from a configuration file.

Credentials come from ALPACA_API_KEY and ALPACA_SECRET_KEY (a .env file
in the working directory is loaded if present) and override any values
in the config file.

Example:
  tradebot run --config examples/configs/paper.yaml --dry-run`,
	RunE: runRun,
}

var (
	runConfigPath  string
	runDryRun      bool
	runMetricsAddr string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "never send orders to the venue; synthesize fills locally")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (e.g. :9090)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runDryRun {
		cfg.Engine.DryRun = true
	}

	keyID := cfg.Broker.KeyID
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		keyID = v
	}
	secret := cfg.Broker.SecretKey
	if v := os.Getenv("ALPACA_SECRET_KEY"); v != "" {
		secret = v
	}
	if cfg.Broker.Venue == "alpaca" && (keyID == "" || secret == "") {
		return fmt.Errorf("alpaca venue requires ALPACA_API_KEY and ALPACA_SECRET_KEY")
	}

	staleAfter, err := cfg.StaleAfter()
	if err != nil {
		return err
	}
	lossWindow, err := cfg.LossWindow()
	if err != nil {
		return err
	}
	cycle, err := cfg.CycleInterval()
	if err != nil {
		return err
	}
	reconcileEvery, err := cfg.ReconcileInterval()
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.ShutdownTimeout()
	if err != nil {
		return err
	}

	jnl, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jnl.Close()

	board := market.NewQuoteBoard(staleAfter)
	book := ledger.New(cfg.Account.Cash)

	strategies := strategy.NewEngine(3)
	limits := make(map[string]risk.StrategyLimits)
	for name, sc := range cfg.Strategies {
		if !sc.Enabled {
			continue
		}
		s, err := strategy.Build(sc.Kind, name, sc.Params)
		if err != nil {
			return fmt.Errorf("build strategy %q: %w", name, err)
		}
		strategies.Add(s)
		limits[name] = risk.StrategyLimits{
			RiskPerTrade: sc.RiskPerTrade,
			MaxPositions: sc.MaxPositions,
		}
	}

	allowCloses := cfg.Risk.AllowCloses()
	rm := risk.NewManager(
		risk.Policy{
			MaxPortfolioRisk: cfg.Risk.MaxPortfolioRisk,
			MaxOpenPositions: cfg.Risk.MaxOpenPositions,
		},
		limits,
		risk.NewBudget(0),
		risk.NewBreaker(risk.BreakerConfig{
			MaxLossPct:     cfg.Risk.MaxLossPercent,
			Window:         lossWindow,
			RejectionLimit: cfg.Risk.RejectionLimit,
			AllowCloses:    allowCloses,
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var gw broker.Gateway
	var client *alpaca.Client
	switch cfg.Broker.Venue {
	case "alpaca":
		client = alpaca.NewClient(keyID, secret, cfg.Broker.Paper)
		gw = client
	case "paper":
		pg := paper.New(broker.AccountSnapshot{
			Currency: cfg.Account.Currency,
			Cash:     cfg.Account.Cash,
			Equity:   cfg.Account.Cash,
		}, board)
		defer pg.Close()
		gw = pg
	}

	var src feed.Feed
	switch cfg.Feed.Source {
	case "stream":
		src = feed.NewStream(cfg.Feed.StreamURL, keyID, secret, cfg.Feed.Instruments)
	case "replay":
		src = feed.NewCSV(cfg.Feed.ReplayFile)
	}

	coord := exec.NewCoordinator(exec.Config{
		DryRun:     cfg.Engine.DryRun,
		MaxRetries: cfg.Engine.MaxRetries,
		Backoff:    backoff.Default(),
	}, gw, book, rm, jnl, board)

	eng := engine.New(engine.Config{
		CycleInterval:     cycle,
		ReconcileInterval: reconcileEvery,
		StopLossPercent:   cfg.Risk.StopLossPercent,
		TakeProfitPercent: cfg.Risk.TakeProfitPercent,
		DryRun:            cfg.Engine.DryRun,
		CancelOnShutdown:  cfg.Engine.CancelOnShutdown,
		ShutdownTimeout:   shutdownTimeout,
	}, src, board, book, strategies, rm, coord, gw, jnl)

	if runMetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(runMetricsAddr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	log.Printf("tradebot starting: venue=%s feed=%s dry_run=%v strategies=%v",
		cfg.Broker.Venue, cfg.Feed.Source, cfg.Engine.DryRun, strategies.Names())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCancel(src.Run(gctx)) })
	if client != nil && !cfg.Engine.DryRun {
		g.Go(func() error { return ignoreCancel(client.StreamUpdates(gctx)) })
	}
	g.Go(func() error {
		defer stop()
		return eng.Run(gctx)
	})

	return g.Wait()
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "csv":
		return journal.NewCSV(jc.Dir)
	default:
		return journal.Nop{}, nil
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
