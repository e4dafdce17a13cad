// Package metrics holds the Prometheus collectors exported by tunehall.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector. A nil *Metrics is valid and records
// nothing, so the core packages can be used without a registry.
type Metrics struct {
	// LifecycleTransitions counts entities moved between lifecycle states.
	LifecycleTransitions *prometheus.CounterVec

	// RelationOps counts relationship operations by outcome.
	RelationOps *prometheus.CounterVec

	// WriteConflicts counts revision conflicts seen on Save.
	WriteConflicts *prometheus.CounterVec

	// PartialWrites counts multi-document operations that failed after a
	// commit, leaving the two sides out of sync.
	PartialWrites *prometheus.CounterVec

	// RequestDuration tracks HTTP latency.
	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. It panics if
// registration fails, which only happens on duplicate registration at start.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LifecycleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunehall_lifecycle_transitions_total",
				Help: "Entities moved between lifecycle states by kind and operation",
			},
			[]string{"kind", "op"}, // op: soft_delete, restore, force_delete
		),
		RelationOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunehall_relation_operations_total",
				Help: "Relationship operations by relation, operation and result",
			},
			[]string{"relation", "op", "result"},
		),
		WriteConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunehall_write_conflicts_total",
				Help: "Optimistic concurrency conflicts by entity kind",
			},
			[]string{"kind"},
		),
		PartialWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tunehall_partial_writes_total",
				Help: "Operations that failed after committing part of their writes",
			},
			[]string{"relation"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tunehall_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.LifecycleTransitions,
			m.RelationOps,
			m.WriteConflicts,
			m.PartialWrites,
			m.RequestDuration,
		)
	}
	return m
}

// Transition records n entities moved by op.
func (m *Metrics) Transition(kind, op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LifecycleTransitions.WithLabelValues(kind, op).Add(float64(n))
}

// RelationOp records the outcome of a relationship operation.
func (m *Metrics) RelationOp(relation, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RelationOps.WithLabelValues(relation, op, result).Inc()
}

// Conflict records a lost compare-and-swap on kind.
func (m *Metrics) Conflict(kind string) {
	if m == nil {
		return
	}
	m.WriteConflicts.WithLabelValues(kind).Inc()
}

// Partial records an operation that stopped half way.
func (m *Metrics) Partial(relation string) {
	if m == nil {
		return
	}
	m.PartialWrites.WithLabelValues(relation).Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
