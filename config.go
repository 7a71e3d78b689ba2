package agentmesh

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/agentmesh/internal/envexpr"
	"github.com/viant/agentmesh/policy"
	"github.com/viant/agentmesh/service/approval/memory"
	"github.com/viant/agentmesh/service/broker"
	"github.com/viant/agentmesh/service/messaging"
	"github.com/viant/agentmesh/service/messenger"
	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the mesh configuration. The
// zero-value is useful: unset fields inherit their package defaults.
type Config struct {
	Broker   BrokerConfig   `json:"broker" yaml:"broker"`
	Approval ApprovalConfig `json:"approval" yaml:"approval"`
	Events   EventsConfig   `json:"events" yaml:"events"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing"`
}

type BrokerConfig struct {
	DefaultTimeout time.Duration `json:"defaultTimeout" yaml:"defaultTimeout"`
	HandoffTimeout time.Duration `json:"handoffTimeout" yaml:"handoffTimeout"`
}

type ApprovalConfig struct {
	HistoryLimit int              `json:"historyLimit" yaml:"historyLimit"`
	Policies     []*policy.Config `json:"policies,omitempty" yaml:"policies,omitempty"`
}

// EventsConfig selects where broker and approval events are published. An
// empty Vendor disables the event service.
type EventsConfig struct {
	Vendor   string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	BasePath string `json:"basePath,omitempty" yaml:"basePath,omitempty"`
	Buffer   int    `json:"buffer,omitempty" yaml:"buffer,omitempty"`
}

type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	ServiceName    string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	ServiceVersion string `json:"serviceVersion,omitempty" yaml:"serviceVersion,omitempty"`
	OutputFile     string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

// DefaultConfig returns a Config populated with the package defaults.
// Callers may modify the returned struct before passing it to WithConfig.
func DefaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			DefaultTimeout: broker.DefaultTimeout,
			HandoffTimeout: messenger.DefaultHandoffTimeout,
		},
		Approval: ApprovalConfig{
			HistoryLimit: memory.DefaultHistoryLimit,
		},
		Tracing: TracingConfig{
			ServiceName: "agentmesh",
		},
	}
}

// Validate returns the first invalid setting or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Broker.DefaultTimeout < 0 {
		return fmt.Errorf("broker.defaultTimeout must be >= 0")
	}
	if c.Broker.HandoffTimeout < 0 {
		return fmt.Errorf("broker.handoffTimeout must be >= 0")
	}
	if c.Approval.HistoryLimit < 0 {
		return fmt.Errorf("approval.historyLimit must be >= 0")
	}
	if _, err := c.policies(); err != nil {
		return err
	}
	switch messaging.Vendor(c.Events.Vendor) {
	case "", messaging.VendorMemory:
	case messaging.VendorFS:
		if c.Events.BasePath == "" {
			return fmt.Errorf("events.basePath is required for vendor %q", c.Events.Vendor)
		}
	default:
		return fmt.Errorf("events.vendor: unsupported vendor %q", c.Events.Vendor)
	}
	if c.Events.Buffer < 0 {
		return fmt.Errorf("events.buffer must be >= 0")
	}
	return nil
}

// policies builds the configured approval policies in declaration order.
func (c *Config) policies() ([]*policy.Policy, error) {
	ret := make([]*policy.Policy, 0, len(c.Approval.Policies))
	for i, cfg := range c.Approval.Policies {
		p, err := policy.FromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("approval.policies[%d]: %w", i, err)
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// LoadConfig reads a YAML config from URL (any afs scheme, e.g. file://,
// mem:// or embed://) on top of DefaultConfig and validates it. References
// of the form ${env.KEY} are replaced with environment variables first.
func LoadConfig(ctx context.Context, URL string, options ...storage.Option) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	ret := DefaultConfig()
	expanded := envexpr.Expand(string(data), os.Getenv)
	if err = yaml.Unmarshal([]byte(expanded), ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}
