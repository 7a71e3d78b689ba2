package messenger

import (
	"log/slog"
	"time"

	"github.com/viant/agentmesh/model/message"
)

// DefaultHandoffTimeout bounds HandoffTo.
const DefaultHandoffTimeout = 30 * time.Second

type Option func(m *Messenger)

// WithCapabilities sets the advertised capabilities.
func WithCapabilities(capabilities ...message.Capability) Option {
	return func(m *Messenger) {
		m.profile.Capabilities = append(m.profile.Capabilities, capabilities...)
	}
}

func WithMetadata(metadata map[string]interface{}) Option {
	return func(m *Messenger) {
		m.profile.Metadata = metadata
	}
}

// WithHandoffTimeout overrides DefaultHandoffTimeout.
func WithHandoffTimeout(timeout time.Duration) Option {
	return func(m *Messenger) {
		m.handoffTimeout = timeout
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Messenger) {
		m.logger = logger
	}
}

// RequestOption customises SendRequest and RequestByCapability.
type RequestOption func(o *requestOptions)

type requestOptions struct {
	noWait       bool
	timeout      time.Duration
	context      map[string]interface{}
	conversation string
	priority     message.Priority
}

// WithoutWait sends the request and returns the handler's direct reply, if any.
func WithoutWait() RequestOption {
	return func(o *requestOptions) {
		o.noWait = true
	}
}

// WithTimeout overrides the broker default wait budget.
func WithTimeout(timeout time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.timeout = timeout
	}
}

// WithContext attaches request context.
func WithContext(context map[string]interface{}) RequestOption {
	return func(o *requestOptions) {
		o.context = context
	}
}

func WithConversation(conversationID string) RequestOption {
	return func(o *requestOptions) {
		o.conversation = conversationID
	}
}

func WithPriority(priority message.Priority) RequestOption {
	return func(o *requestOptions) {
		o.priority = priority
	}
}
