package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "directaid"

// Metrics holds the ledger collectors. Each binary owns one registry.
type Metrics struct {
	Registry *prometheus.Registry

	Postings       *prometheus.CounterVec
	PostDuration   *prometheus.HistogramVec
	Rejections     *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec
	AuditDropped   prometheus.Counter
	Confirmations  *prometheus.CounterVec
	Disputes       *prometheus.CounterVec
	BalanceDrift   *prometheus.CounterVec
	ImbalancedSeen prometheus.Gauge
	HTTPRequests   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Postings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_postings_total",
			Help:      "Transactions committed to the ledger, by event type and outcome.",
		}, []string{"event", "outcome"}),
		PostDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_post_duration_seconds",
			Help:      "Latency of Post calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_rejections_total",
			Help:      "Rejected postings, by event type and reason.",
		}, []string{"event", "reason"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_cache_lookups_total",
			Help:      "Balance cache lookups, by result.",
		}, []string{"result"}),
		AuditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Audit records dropped because the queue was full.",
		}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmation_transitions_total",
			Help:      "Confirmation state changes, by target status.",
		}, []string{"status"}),
		Disputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispute_transitions_total",
			Help:      "Dispute state changes, by target status.",
		}, []string{"status"}),
		BalanceDrift: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_cache_drift_total",
			Help:      "Cached balances that disagreed with a ledger recomputation.",
		}, []string{"account"}),
		ImbalancedSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_imbalanced_transactions",
			Help:      "Imbalanced transactions found by the last invariant sweep.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
	}
	m.Registry.MustRegister(
		m.Postings, m.PostDuration, m.Rejections, m.CacheLookups, m.AuditDropped,
		m.Confirmations, m.Disputes, m.BalanceDrift, m.ImbalancedSeen, m.HTTPRequests,
	)
	return m
}
