// Package engine runs the decision loop: drain market events, fold in
// venue updates, mark the book, let strategies speak, risk-check their
// intents, and dispatch what survives. The loop is the single writer for
// the ledger, the risk budget, and the breaker.
package engine

import (
	"context"
	"log"
	"time"

	"github.com/rustyeddy/tradebot/broker"
	"github.com/rustyeddy/tradebot/exec"
	"github.com/rustyeddy/tradebot/feed"
	"github.com/rustyeddy/tradebot/internal/id"
	"github.com/rustyeddy/tradebot/journal"
	"github.com/rustyeddy/tradebot/ledger"
	"github.com/rustyeddy/tradebot/market"
	"github.com/rustyeddy/tradebot/risk"
	"github.com/rustyeddy/tradebot/strategy"
)

type Config struct {
	CycleInterval     time.Duration
	ReconcileInterval time.Duration

	// StopLossPercent and TakeProfitPercent close positions whose move
	// from entry crosses the threshold. 0 disables the check.
	StopLossPercent   float64
	TakeProfitPercent float64

	// DryRun skips venue reconciliation (there is no venue state to
	// reconcile against when orders never leave the process).
	DryRun bool

	CancelOnShutdown bool
	ShutdownTimeout  time.Duration
}

type Engine struct {
	cfg        Config
	feed       feed.Feed
	board      *market.QuoteBoard
	book       *ledger.Ledger
	strategies *strategy.Engine
	riskMgr    *risk.Manager
	coord      *exec.Coordinator
	gateway    broker.Gateway
	journal    journal.Journal

	feedDone    bool
	updatesDone bool
	sessionDay  int

	nowFunc func() time.Time
}

func New(cfg Config, f feed.Feed, board *market.QuoteBoard, book *ledger.Ledger,
	strategies *strategy.Engine, rm *risk.Manager, coord *exec.Coordinator,
	gw broker.Gateway, jnl journal.Journal) *Engine {

	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = time.Second
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if jnl == nil {
		jnl = journal.Nop{}
	}
	return &Engine{
		cfg:        cfg,
		feed:       f,
		board:      board,
		book:       book,
		strategies: strategies,
		riskMgr:    rm,
		coord:      coord,
		gateway:    gw,
		journal:    jnl,
		nowFunc:    time.Now,
	}
}

// Run drives cycles until ctx ends or the feed is exhausted with no orders
// outstanding. Shutdown is cooperative: the in-progress cycle finishes, open
// orders are optionally cancelled, and outstanding orders get a bounded
// wait to reach a terminal state.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.CycleInterval)
	defer ticker.Stop()
	reconcile := time.NewTicker(e.cfg.ReconcileInterval)
	defer reconcile.Stop()

	e.sessionDay = e.nowFunc().UTC().YearDay()

	for {
		select {
		case <-ctx.Done():
			return e.shutdown()

		case <-reconcile.C:
			e.reconcile(ctx)

		case <-ticker.C:
			e.cycle(ctx)
			if e.feedDone && e.coord.Outstanding() == 0 {
				log.Printf("engine: feed exhausted, stopping")
				return nil
			}
		}
	}
}

// cycle is one pass of the decision loop.
func (e *Engine) cycle(ctx context.Context) {
	metricCycles.Inc()
	now := e.nowFunc()

	e.rollSession(now)
	events := e.drainFeed()
	e.drainUpdates()

	e.book.MarkToMarket(e.board.Snapshot())
	snap := e.book.Snapshot()
	metricEquity.Set(snap.Equity)

	e.riskMgr.Observe(now, snap)

	for _, intent := range e.exitIntents(now, snap) {
		snap = e.dispatch(ctx, intent, snap)
	}

	for _, ev := range events {
		for _, intent := range e.strategies.OnMarketEvent(ev, snap) {
			snap = e.dispatch(ctx, intent, snap)
		}
	}

	if err := e.journal.RecordEquity(journal.EquityRecord{
		Time:          now,
		Cash:          snap.Cash,
		Equity:        snap.Equity,
		RealizedPL:    snap.RealizedPL,
		UnrealizedPL:  snap.UnrealizedPL,
		OpenPositions: snap.OpenPositions(),
	}); err != nil {
		log.Printf("engine: journal equity: %v", err)
	}
}

// dispatch risk-checks one intent and submits it when approved. It returns
// a fresh snapshot because a dry-run submit fills and mutates the book
// synchronously.
func (e *Engine) dispatch(ctx context.Context, intent strategy.Intent, snap ledger.Snapshot) ledger.Snapshot {
	quote, err := e.board.Get(intent.Instrument)
	if err != nil {
		log.Printf("engine: drop intent %s: %v", intent.ID, err)
		return snap
	}

	d := e.riskMgr.Review(intent, snap, quote)
	if !d.Approved {
		log.Printf("engine: intent %s (%s %s) rejected: %s",
			intent.ID, intent.Side, intent.Instrument, d.Reason())
		return snap
	}
	if d.Resized {
		log.Printf("engine: intent %s resized to %.4f %s", intent.ID, d.Quantity, intent.Instrument)
	}

	if _, err := e.coord.Submit(ctx, intent, d); err != nil {
		log.Printf("engine: submit %s: %v", intent.ID, err)
	}
	return e.book.Snapshot()
}

// exitIntents closes positions whose move from entry breaches the stop-loss
// or take-profit threshold. Exits run before strategies so a breach is acted
// on ahead of new signals, and they work on stale marks too; a stale quote
// is still the best available exit price.
func (e *Engine) exitIntents(now time.Time, snap ledger.Snapshot) []strategy.Intent {
	if e.cfg.StopLossPercent <= 0 && e.cfg.TakeProfitPercent <= 0 {
		return nil
	}

	working := make(map[string]bool)
	for _, o := range e.coord.OpenOrders() {
		working[o.Instrument] = true
	}

	var intents []strategy.Intent
	for instr, pos := range snap.Positions {
		if working[instr] || pos.AvgEntry <= 0 || pos.MarkPrice <= 0 {
			continue
		}

		move := (pos.MarkPrice - pos.AvgEntry) / pos.AvgEntry
		if pos.Quantity < 0 {
			move = -move
		}

		reason := ""
		switch {
		case e.cfg.StopLossPercent > 0 && move <= -e.cfg.StopLossPercent:
			reason = "stop loss"
		case e.cfg.TakeProfitPercent > 0 && move >= e.cfg.TakeProfitPercent:
			reason = "take profit"
		default:
			continue
		}

		side := strategy.Sell
		if pos.Quantity < 0 {
			side = strategy.Buy
		}
		log.Printf("engine: %s for %s at %.4f (entry %.4f, move %.2f%%)",
			reason, instr, pos.MarkPrice, pos.AvgEntry, move*100)
		intents = append(intents, strategy.Intent{
			ID:         id.New(),
			Strategy:   "exit",
			Instrument: instr,
			Side:       side,
			Quantity:   abs(pos.Quantity),
			Reduce:     true,
			Reason:     reason,
			Time:       now,
		})
	}
	return intents
}

// drainFeed applies everything the feed has buffered and returns the
// drained events in arrival order.
func (e *Engine) drainFeed() []market.Event {
	if e.feedDone {
		return nil
	}

	var events []market.Event
	for {
		select {
		case ev, ok := <-e.feed.Events():
			if !ok {
				e.feedDone = true
				return events
			}
			if ev.Kind == market.KindInterrupted {
				log.Printf("engine: feed interrupted: %v", ev.Err)
				metricFeedInterruptions.Inc()
				continue
			}
			e.board.Apply(ev)
			events = append(events, ev)
		default:
			return events
		}
	}
}

// drainUpdates folds buffered venue updates into the coordinator.
func (e *Engine) drainUpdates() {
	if e.updatesDone {
		return
	}
	for {
		select {
		case u, ok := <-e.gateway.Updates():
			if !ok {
				e.updatesDone = true
				return
			}
			e.coord.Process(u)
		default:
			return
		}
	}
}

// reconcile corrects the ledger against the venue snapshot.
func (e *Engine) reconcile(ctx context.Context) {
	if e.cfg.DryRun {
		return
	}

	acct, err := e.gateway.GetAccountSnapshot(ctx)
	if err != nil {
		log.Printf("engine: reconcile account: %v", err)
		return
	}
	positions, err := e.gateway.GetPositions(ctx)
	if err != nil {
		log.Printf("engine: reconcile positions: %v", err)
		return
	}

	for _, fix := range e.book.Reconcile(acct, positions) {
		metricReconcileFixes.Inc()
		log.Printf("engine: reconcile %s %s: local %.4f -> venue %.4f",
			fix.Instrument, fix.Field, fix.Local, fix.Venue)
	}
}

// rollSession resets session-scoped risk state at the UTC day boundary.
// The breaker is deliberately untouched: only an explicit Reset clears it.
func (e *Engine) rollSession(now time.Time) {
	day := now.UTC().YearDay()
	if day == e.sessionDay {
		return
	}
	e.sessionDay = day

	log.Printf("engine: new session, resetting realized P/L and risk budget")
	e.book.ResetSession()
	e.riskMgr.Budget().ResetSession()
	snap := e.book.Snapshot()
	if err := e.journal.RecordEquity(journal.EquityRecord{
		Time:          now,
		Cash:          snap.Cash,
		Equity:        snap.Equity,
		OpenPositions: snap.OpenPositions(),
	}); err != nil {
		log.Printf("engine: journal session boundary: %v", err)
	}
}

func (e *Engine) shutdown() error {
	log.Printf("engine: shutting down, %d orders outstanding", e.coord.Outstanding())

	if e.cfg.CancelOnShutdown && !e.cfg.DryRun {
		cancelCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
		defer cancel()
		if err := e.coord.CancelOpen(cancelCtx); err != nil {
			log.Printf("engine: cancel open orders: %v", err)
		}
	}

	deadline := time.Now().Add(e.cfg.ShutdownTimeout)
	for e.coord.Outstanding() > 0 && time.Now().Before(deadline) {
		e.drainUpdates()
		time.Sleep(10 * time.Millisecond)
	}

	if n := e.coord.Outstanding(); n > 0 {
		log.Printf("engine: shutdown with %d orders still outstanding", n)
	}
	return nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
