// Package metrics exposes Prometheus instruments for governance calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CallMetrics counts governance calls and records their latency, labelled by
// server, method and outcome (error kind or "success").
type CallMetrics struct {
	Calls         *prometheus.CounterVec
	CallDuration  *prometheus.HistogramVec
	LinkUpserts   *prometheus.CounterVec
	ServersServed prometheus.Gauge
}

// New registers the governance metrics with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *CallMetrics {
	f := promauto.With(reg)
	return &CallMetrics{
		Calls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "governance_calls_total",
			Help: "Total governance calls by server, method and outcome",
		}, []string{"server", "method", "outcome"}),
		CallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "governance_call_duration_seconds",
			Help:    "Duration of governance calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"server", "method"}),
		LinkUpserts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "governance_link_upserts_total",
			Help: "Idempotent link calls by relationship type and result (created or updated)",
		}, []string{"relationship", "result"}),
		ServersServed: f.NewGauge(prometheus.GaugeOpts{
			Name: "governance_servers_served",
			Help: "Number of governance servers hosted by this process",
		}),
	}
}

// ObserveCall records one finished call.
func (m *CallMetrics) ObserveCall(server, method, outcome string, d time.Duration) {
	m.Calls.WithLabelValues(server, method, outcome).Inc()
	m.CallDuration.WithLabelValues(server, method).Observe(d.Seconds())
}

// ObserveLinkUpsert records whether an idempotent link created a new edge or
// updated the existing one.
func (m *CallMetrics) ObserveLinkUpsert(relationship string, created bool) {
	result := "updated"
	if created {
		result = "created"
	}
	m.LinkUpserts.WithLabelValues(relationship, result).Inc()
}

// SetServersServed records the size of the service-instance registry.
func (m *CallMetrics) SetServersServed(n int) {
	m.ServersServed.Set(float64(n))
}
