package agentmesh

import (
	"fmt"
	"log/slog"

	"github.com/viant/agentmesh/metrics"
	"github.com/viant/agentmesh/policy"
	"github.com/viant/agentmesh/service/approval"
	"github.com/viant/agentmesh/service/approval/memory"
	"github.com/viant/agentmesh/service/broker"
	"github.com/viant/agentmesh/service/event"
	"github.com/viant/agentmesh/service/messaging"
	qmem "github.com/viant/agentmesh/service/messaging/memory"
	"github.com/viant/agentmesh/service/messenger"
	"github.com/viant/agentmesh/tracing"
)

// Service owns one broker and one approval service. Create it once per
// process (or per test) and pass it explicitly.
type Service struct {
	config        *Config
	logger        *slog.Logger
	metrics       *metrics.Metrics
	events        *event.Service
	ownsEvents    bool
	broker        *broker.Service
	approvals     approval.Service
	policies      []*policy.Policy
	extraPolicies []*policy.Policy
	initErr       error
}

// New creates a Service. Configured policies are registered in order,
// followed by those passed with WithPolicies.
func New(options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig()}
	for _, option := range options {
		option(ret)
	}
	if ret.initErr != nil {
		return nil, fmt.Errorf("failed to initialise tracing: %w", ret.initErr)
	}
	if err := ret.init(); err != nil {
		ret.Close()
		return nil, err
	}
	return ret, nil
}

func (s *Service) init() error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if cfg := s.config.Tracing; cfg.Enabled {
		if err := tracing.Init(cfg.ServiceName, cfg.ServiceVersion, cfg.OutputFile); err != nil {
			return fmt.Errorf("failed to initialise tracing: %w", err)
		}
	}
	if s.events == nil && s.config.Events.Vendor != "" {
		events, err := newEventService(&s.config.Events, s.logger)
		if err != nil {
			return err
		}
		s.events, s.ownsEvents = events, true
	}
	configured, _ := s.config.policies()
	s.policies = append(configured, s.extraPolicies...)

	brokerOptions := []broker.Option{
		broker.WithDefaultTimeout(s.config.Broker.DefaultTimeout),
		broker.WithLogger(s.logger),
		broker.WithMetrics(s.metrics),
	}
	if s.events != nil {
		brokerOptions = append(brokerOptions, broker.WithEvents(s.events))
	}
	s.broker = broker.New(brokerOptions...)

	if s.approvals == nil {
		approvalOptions := []memory.Option{
			memory.WithHistoryLimit(s.config.Approval.HistoryLimit),
			memory.WithLogger(s.logger),
			memory.WithMetrics(s.metrics),
		}
		if s.events != nil {
			approvalOptions = append(approvalOptions, memory.WithEvents(s.events))
		}
		s.approvals = memory.New(approvalOptions...)
	}
	return s.registerPolicies()
}

func (s *Service) registerPolicies() error {
	for _, p := range s.policies {
		if err := s.approvals.AddPolicy(p); err != nil {
			return fmt.Errorf("failed to register policy %v: %w", p.Name, err)
		}
	}
	return nil
}

func newEventService(cfg *EventsConfig, logger *slog.Logger) (*event.Service, error) {
	vendor := messaging.Vendor(cfg.Vendor)
	options := []event.Option{event.WithLogger(logger)}
	switch vendor {
	case messaging.VendorFS:
		options = append(options, event.WithFsQueueConfig(event.FsQueueConfig(cfg.BasePath)))
	case messaging.VendorMemory:
		buffer := cfg.Buffer
		options = append(options, event.WithMemoryQueueConfig(func(string) qmem.Config {
			config := qmem.DefaultConfig()
			config.DropWhenFull = true
			if buffer > 0 {
				config.Buffer = buffer
			}
			return config
		}))
	}
	return event.New(vendor, options...)
}

func (s *Service) Config() *Config {
	return s.config
}

func (s *Service) Broker() *broker.Service {
	return s.broker
}

func (s *Service) Approvals() approval.Service {
	return s.approvals
}

// Events returns the event service, or nil when events are disabled.
func (s *Service) Events() *event.Service {
	return s.events
}

// NewMessenger registers a worker on the broker using the configured
// handoff timeout; options may override it.
func (s *Service) NewMessenger(id, agentType string, handler messenger.Handler, options ...messenger.Option) *messenger.Messenger {
	defaults := []messenger.Option{
		messenger.WithHandoffTimeout(s.config.Broker.HandoffTimeout),
		messenger.WithLogger(s.logger),
	}
	return messenger.New(s.broker, id, agentType, handler, append(defaults, options...)...)
}

// NewApprovalClient returns an approval client for agentID.
func (s *Service) NewApprovalClient(agentID string, options ...approval.ClientOption) *approval.Client {
	defaults := []approval.ClientOption{approval.WithClientLogger(s.logger)}
	return approval.NewClient(agentID, s.approvals, append(defaults, options...)...)
}

// Reset returns both subsystems to their freshly constructed state: workers,
// logs, pending requests and statistics are dropped, blocked callers are
// released and the initial policies are registered again.
func (s *Service) Reset() error {
	s.broker.Reset()
	s.approvals.Reset()
	return s.registerPolicies()
}

// Close releases the event service created from Config.Events.
func (s *Service) Close() {
	if s.ownsEvents && s.events != nil {
		s.events.Close()
	}
}
