package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	metricCycles            = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_cycles_total", Help: "Decision loop cycles completed"})
	metricEquity            = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_equity", Help: "Account equity after the latest mark to market"})
	metricFeedInterruptions = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_feed_interruptions_total", Help: "Feed interruption events observed"})
	metricReconcileFixes    = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_reconcile_fixes_total", Help: "Ledger fields corrected during reconciliation"})
)

func init() {
	prometheus.MustRegister(metricCycles, metricEquity, metricFeedInterruptions, metricReconcileFixes)
}
