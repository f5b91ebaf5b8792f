package exec

import "github.com/prometheus/client_golang/prometheus"

var (
	metricOrdersSubmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_submitted_total", Help: "Orders accepted by the venue"})
	metricOrdersFilled    = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_filled_total", Help: "Orders fully filled"})
	metricOrdersRejected  = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_rejected_total", Help: "Orders rejected by the venue or on submission"})
	metricOrdersCancelled = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_cancelled_total", Help: "Orders cancelled before completion"})
	metricOrdersOpen      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_orders_open", Help: "Orders currently in a non-terminal state"})
	metricSubmitRetries   = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_submit_retries_total", Help: "Transient submission failures retried"})
)

func init() {
	prometheus.MustRegister(
		metricOrdersSubmitted, metricOrdersFilled, metricOrdersRejected,
		metricOrdersCancelled, metricOrdersOpen, metricSubmitRetries,
	)
}
