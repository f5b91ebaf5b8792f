package risk

import "github.com/prometheus/client_golang/prometheus"

var (
	metricIntentsApproved = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_intents_approved_total", Help: "Trade intents approved by the risk manager"})
	metricIntentsResized  = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_intents_resized_total", Help: "Trade intents resized down to the per-trade ceiling"})
	metricIntentsRejected = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_intents_rejected_total", Help: "Trade intents rejected by the risk manager"})
	metricBreakerState    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_breaker_tripped", Help: "1 while the circuit breaker is tripped"})
	metricBudgetUsed      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_risk_budget_used", Help: "Reserved plus committed risk notional"})
)

func init() {
	prometheus.MustRegister(
		metricIntentsApproved, metricIntentsResized, metricIntentsRejected,
		metricBreakerState, metricBudgetUsed,
	)
	metricBreakerState.Set(0)
}
