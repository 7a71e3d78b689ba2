package agentmesh

import (
	"log/slog"

	"github.com/viant/agentmesh/metrics"
	"github.com/viant/agentmesh/policy"
	"github.com/viant/agentmesh/service/approval"
	"github.com/viant/agentmesh/service/event"
	"github.com/viant/agentmesh/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the Service
type Option func(s *Service)

// WithConfig sets the configuration; nil keeps DefaultConfig.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics records broker and approval activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEventService publishes envelopes and approval events to service
// instead of the one described by Config.Events. The caller keeps ownership.
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.events = service
	}
}

// WithApprovalService replaces the in-memory approval service.
func WithApprovalService(svc approval.Service) Option {
	return func(s *Service) {
		s.approvals = svc
	}
}

// WithPolicies registers policies after the configured ones.
func WithPolicies(policies ...*policy.Policy) Option {
	return func(s *Service) {
		s.extraPolicies = append(s.extraPolicies, policies...)
	}
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used. The first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		if err := tracing.Init(serviceName, serviceVersion, outputFile); err != nil {
			s.initErr = err
		}
	}
}

// WithTracingExporter configures tracing with a custom SpanExporter, e.g.
// OTLP. The first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		if err := tracing.InitWithExporter(serviceName, serviceVersion, exporter); err != nil {
			s.initErr = err
		}
	}
}
