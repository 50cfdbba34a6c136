// Package ops is the read-only operator surface: Prometheus metrics and the
// health/market-snapshot HTTP handlers, grounded in the teacher's pkg/api
// (gorilla/mux + rs/cors) and chidi150c-coinbase's metrics.go
// (prometheus.MustRegister in init, package-level CounterVec/GaugeVec).
package ops

import "github.com/prometheus/client_golang/prometheus"

var (
	// SettlementLatency times one place/cancel command from dequeue to
	// commit (or to rollback, on failure), labeled by pair.
	SettlementLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchengine_settlement_latency_seconds",
			Help:    "Time from dequeue to commit (or rollback) for one place or cancel command.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pair"},
	)

	// TradesTotal counts trades settled, by pair.
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchengine_trades_total",
			Help: "Trades settled, by pair.",
		},
		[]string{"pair"},
	)

	// CommandsRejected counts place/cancel commands a worker refused to
	// commit, by pair and error kind.
	CommandsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchengine_commands_rejected_total",
			Help: "Place/cancel commands rejected, by pair and error kind.",
		},
		[]string{"pair", "kind"},
	)

	// QueueLag is the pending-message count last passed to SetQueueLag for
	// a pair's durable consumer. No worker calls SetQueueLag, so the gauge
	// carries no series unless something else sets it.
	QueueLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matchengine_queue_lag",
			Help: "Pending messages on a pair's durable consumer.",
		},
		[]string{"pair"},
	)
)

func init() {
	prometheus.MustRegister(SettlementLatency, TradesTotal, CommandsRejected, QueueLag)
}

func ObserveSettlement(pair string, seconds float64) { SettlementLatency.WithLabelValues(pair).Observe(seconds) }
func IncTrades(pair string, n int)                   { TradesTotal.WithLabelValues(pair).Add(float64(n)) }
func IncRejected(pair, kind string)                  { CommandsRejected.WithLabelValues(pair, kind).Inc() }
func SetQueueLag(pair string, pending float64)       { QueueLag.WithLabelValues(pair).Set(pending) }
