package memory

import (
	"log/slog"

	"github.com/viant/agentmesh/metrics"
	model "github.com/viant/agentmesh/model/approval"
	"github.com/viant/agentmesh/policy"
	"github.com/viant/agentmesh/service/dao"
	"github.com/viant/agentmesh/service/event"
	"github.com/viant/agentmesh/service/messaging"
)

type Option func(*service)

// WithHistoryLimit caps the audit history; older entries are dropped first.
// A non-positive limit keeps everything.
func WithHistoryLimit(limit int) Option {
	return func(s *service) { s.historyLimit = limit }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) { s.metrics = m }
}

// WithQueue replaces the default in-memory event queue. A nil queue disables
// queue fan-out.
func WithQueue(q messaging.Queue[model.Event]) Option {
	return func(s *service) {
		s.queue = q
		s.queueSet = true
	}
}

// WithEvents additionally publishes every approval event to the event service.
func WithEvents(events *event.Service) Option {
	return func(s *service) { s.events = events }
}

// WithResponseStore keeps decisions in responses instead of memory, e.g. to
// retain an audit trail beyond the history limit.
func WithResponseStore(responses dao.Service[string, model.Response]) Option {
	return func(s *service) { s.responses = responses }
}

// WithPolicies registers policies at construction time.
func WithPolicies(policies ...*policy.Policy) Option {
	return func(s *service) { s.initial = append(s.initial, policies...) }
}
