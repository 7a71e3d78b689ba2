// Package metrics exposes Prometheus collectors for message routing and
// approval activity.
//
// Usage:
//
//	m := metrics.New(prometheus.NewRegistry())
//	m.MessageRouted("request", metrics.OutcomeDelivered, time.Since(start))
//	m.ApprovalDecided("approved", "human", time.Since(start))
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Routing outcomes.
const (
	OutcomeDelivered    = "delivered"
	OutcomeNoRecipient  = "no_recipient"
	OutcomeHandlerError = "handler_error"
	OutcomeTimeout      = "timeout"
	OutcomeCancelled    = "cancelled"
	// OutcomeBroadcast counts one Broadcast fan-out, not its individual sends.
	OutcomeBroadcast = "broadcast"
)

// Metrics groups all collectors. A nil *Metrics records nothing.
type Metrics struct {
	// MessagesRouted counts sends by message kind and outcome.
	// Labels: kind, outcome
	MessagesRouted *prometheus.CounterVec

	// SendDuration measures Send latency, including the wait for a reply.
	// Labels: kind
	SendDuration *prometheus.HistogramVec

	// RegisteredAgents is the number of workers known to the broker.
	RegisteredAgents prometheus.Gauge

	// ApprovalRequests counts requests that required human approval.
	// Labels: action_kind
	ApprovalRequests *prometheus.CounterVec

	// ApprovalDecisions counts resolved requests.
	// Labels: decision, source (human|system)
	ApprovalDecisions *prometheus.CounterVec

	// ApprovalLatency measures time from request to decision in seconds.
	// Labels: decision
	ApprovalLatency *prometheus.HistogramVec

	// PendingApprovals is the number of requests awaiting a decision.
	PendingApprovals prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which suits tests and embedded use.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesRouted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_messages_routed_total",
				Help: "Total number of messages routed by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		SendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentmesh_send_duration_seconds",
				Help:    "Duration of broker sends in seconds",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		RegisteredAgents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agentmesh_registered_agents",
			Help: "Current number of registered agents",
		}),
		ApprovalRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_approval_requests_total",
				Help: "Total number of approval requests by action kind",
			},
			[]string{"action_kind"},
		),
		ApprovalDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentmesh_approval_decisions_total",
				Help: "Total number of approval decisions by decision and source",
			},
			[]string{"decision", "source"},
		),
		ApprovalLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentmesh_approval_latency_seconds",
				Help:    "Time from approval request to decision in seconds",
				Buckets: []float64{0.1, 1, 5, 30, 60, 180, 300, 600},
			},
			[]string{"decision"},
		),
		PendingApprovals: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agentmesh_pending_approvals",
			Help: "Current number of approval requests awaiting a decision",
		}),
	}
}

// MessageRouted records one send.
func (m *Metrics) MessageRouted(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.MessagesRouted.WithLabelValues(kind, outcome).Inc()
	m.SendDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// SetRegisteredAgents updates the agent gauge.
func (m *Metrics) SetRegisteredAgents(n int) {
	if m == nil {
		return
	}
	m.RegisteredAgents.Set(float64(n))
}

// ApprovalRequested records a new pending request.
func (m *Metrics) ApprovalRequested(actionKind string) {
	if m == nil {
		return
	}
	m.ApprovalRequests.WithLabelValues(actionKind).Inc()
	m.PendingApprovals.Inc()
}

// ApprovalDecided records a resolved request.
func (m *Metrics) ApprovalDecided(decision, source string, latency time.Duration) {
	if m == nil {
		return
	}
	m.ApprovalDecisions.WithLabelValues(decision, source).Inc()
	m.ApprovalLatency.WithLabelValues(decision).Observe(latency.Seconds())
	m.PendingApprovals.Dec()
}

// SetPendingApprovals overwrites the pending gauge, e.g. after a reset.
func (m *Metrics) SetPendingApprovals(n int) {
	if m == nil {
		return
	}
	m.PendingApprovals.Set(float64(n))
}
