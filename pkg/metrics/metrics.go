// Package metrics exposes the engine's Prometheus instrumentation: one
// registry shared by the monitor and the queue orchestrator, served over
// the standard promhttp handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the engine updates.
type Metrics struct {
	registry *prometheus.Registry

	TransactionsCached   prometheus.Counter
	QueueCycles          prometheus.Counter
	ResponsesSent        *prometheus.CounterVec
	VerificationTimeouts *prometheus.CounterVec
	LedgerReconnects     prometheus.Counter
	RewardsPFT           prometheus.Counter
}

// New constructs and registers the engine's collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.TransactionsCached = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskengine_transactions_cached_total",
		Help: "Transactions newly inserted into tx_cache.",
	})
	m.QueueCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskengine_queue_cycles_total",
		Help: "Completed queue orchestrator cycles.",
	})
	m.ResponsesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskengine_responses_sent_total",
		Help: "On-chain responses sent, by queue.",
	}, []string{"queue"})
	m.VerificationTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "taskengine_verification_timeouts_total",
		Help: "Sends that could not be confirmed on-ledger within the poll budget, by queue.",
	}, []string{"queue"})
	m.LedgerReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskengine_ledger_reconnects_total",
		Help: "WebSocket reconnects performed by the ledger monitor.",
	})
	m.RewardsPFT = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "taskengine_rewards_pft_total",
		Help: "Total PFT issued as task and initiation rewards.",
	})

	m.registry.MustRegister(
		m.TransactionsCached,
		m.QueueCycles,
		m.ResponsesSent,
		m.VerificationTimeouts,
		m.LedgerReconnects,
		m.RewardsPFT,
	)
	return m
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
