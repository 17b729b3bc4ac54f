// Package metrics exposes the node's operational counters and gauges as
// Prometheus collectors: HAT consensus throughput, fraud/dispute volume,
// and reputation registry activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every collector the node exports, registered against
// its own prometheus.Registry so multiple Registry instances (e.g. in
// tests) never collide on the global default registerer.
type Registry struct {
	reg *prometheus.Registry

	SessionsStarted    prometheus.Counter
	SessionsApproved    prometheus.Counter
	SessionsRejected    prometheus.Counter
	SessionsDisputed    prometheus.Counter
	ResponseLatency     prometheus.Histogram
	ValidatorsSelected  prometheus.Histogram
	FraudRecordsWritten prometheus.Counter
	ReputationPenalties prometheus.Counter
	SybilAlertsRaised   prometheus.Counter
	DisputesResolved    *prometheus.CounterVec
	ReputationGauge     prometheus.Gauge
}

// New builds a Registry with all collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Registry{
		reg: reg,
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustvm_hat_sessions_started_total",
			Help: "HAT consensus sessions initiated.",
		}),
		SessionsApproved: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustvm_hat_sessions_approved_total",
			Help: "HAT consensus sessions that reached an approving consensus.",
		}),
		SessionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustvm_hat_sessions_rejected_total",
			Help: "HAT consensus sessions that reached a rejecting consensus.",
		}),
		SessionsDisputed: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustvm_hat_sessions_disputed_total",
			Help: "HAT consensus sessions escalated to DAO arbitration.",
		}),
		ResponseLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustvm_hat_response_latency_seconds",
			Help:    "Time between challenge broadcast and a validator's signed response.",
			Buckets: prometheus.DefBuckets,
		}),
		ValidatorsSelected: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustvm_hat_validators_selected",
			Help:    "Validator set size chosen per HAT session after diversity filtering.",
			Buckets: []float64{1, 3, 5, 7, 9, 11, 15, 21},
		}),
		FraudRecordsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustvm_fraud_records_total",
			Help: "Fraud records written by the reputation penalty layer.",
		}),
		ReputationPenalties: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustvm_reputation_penalties_total",
			Help: "Reputation penalty applications across all causes.",
		}),
		SybilAlertsRaised: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustvm_sybil_alerts_total",
			Help: "Sybil/Eclipse cluster alerts raised by the risk detector.",
		}),
		DisputesResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustvm_dao_disputes_resolved_total",
			Help: "DAO dispute resolutions, partitioned by verdict.",
		}, []string{"verdict"}),
		ReputationGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trustvm_reputation_registry_size",
			Help: "Number of addresses with a non-zero reputation record.",
		}),
	}
	return m
}

// Gatherer exposes the underlying prometheus.Gatherer for an HTTP handler.
func (m *Registry) Gatherer() prometheus.Gatherer {
	return m.reg
}

// RecordResolution increments the DisputesResolved vector for approved or
// disapproved verdicts.
func (m *Registry) RecordResolution(approved bool) {
	if approved {
		m.DisputesResolved.WithLabelValues("approved").Inc()
		return
	}
	m.DisputesResolved.WithLabelValues("disapproved").Inc()
}
