package broker

import (
	"log/slog"
	"time"

	"github.com/viant/agentmesh/metrics"
	"github.com/viant/agentmesh/service/event"
)

// DefaultTimeout bounds a waiting send when no timeout is configured.
const DefaultTimeout = 30 * time.Second

type Option func(s *Service)

// WithDefaultTimeout sets the wait budget used when a send has no explicit timeout.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.defaultTimeout = timeout
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEvents mirrors every routed envelope to the event service.
func WithEvents(events *event.Service) Option {
	return func(s *Service) {
		s.events = events
	}
}

// SendOption customises a single Send.
type SendOption func(o *sendOptions)

type sendOptions struct {
	wait       bool
	timeout    time.Duration
	timeoutSet bool
}

// WithWait makes a REQUEST or HANDOFF send block until a correlated reply
// arrives. Other kinds are always delivered synchronously.
func WithWait(wait bool) SendOption {
	return func(o *sendOptions) {
		o.wait = wait
	}
}

// WithTimeout overrides the broker default wait budget; zero or less waits
// until ctx is done.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		o.timeout = timeout
		o.timeoutSet = true
	}
}
