package approval

import (
	"time"

	model "github.com/viant/agentmesh/model/approval"
	"github.com/viant/agentmesh/service/dao"
)

// RequestOption customises RequestApproval and Client.RequestHumanApproval.
type RequestOption func(o *RequestOptions)

// RequestOptions carries the resolved request options.
type RequestOptions struct {
	Context    map[string]interface{}
	Metadata   map[string]interface{}
	Timeout    time.Duration
	HasTimeout bool
	// BypassCheck skips the policy pre-check in Client.RequestHumanApproval.
	BypassCheck bool
}

// NewRequestOptions applies options.
func NewRequestOptions(options ...RequestOption) *RequestOptions {
	ret := &RequestOptions{}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// WithContext attaches reviewer context, e.g. the conversation so far.
func WithContext(context map[string]interface{}) RequestOption {
	return func(o *RequestOptions) {
		o.Context = context
	}
}

func WithMetadata(metadata map[string]interface{}) RequestOption {
	return func(o *RequestOptions) {
		o.Metadata = metadata
	}
}

// WithTimeout overrides the governing policy timeout; zero waits indefinitely.
func WithTimeout(timeout time.Duration) RequestOption {
	return func(o *RequestOptions) {
		o.Timeout = timeout
		o.HasTimeout = true
	}
}

// WithBypassCheck requests approval even when no policy triggers.
func WithBypassCheck() RequestOption {
	return func(o *RequestOptions) {
		o.BypassCheck = true
	}
}

// PendingFilter restricts Pending results by a request field.
type PendingFilter = *dao.Parameter

// Filterable request fields.
const (
	FieldAgentID    = "AgentID"
	FieldActionKind = "ActionKind"
	FieldPriority   = "Priority"
)

// WithAgentID keeps requests from any of agentIDs. Without a non-empty id it
// returns nil and filters nothing.
func WithAgentID(agentIDs ...string) PendingFilter {
	return dao.NewParameter(FieldAgentID, agentIDs...)
}

// WithActionKind keeps requests of any of kinds.
func WithActionKind(kinds ...model.ActionKind) PendingFilter {
	values := make([]string, len(kinds))
	for i, kind := range kinds {
		values[i] = string(kind)
	}
	return dao.NewParameter(FieldActionKind, values...)
}

// WithPriority keeps requests of any of priorities.
func WithPriority(priorities ...model.Priority) PendingFilter {
	values := make([]string, len(priorities))
	for i, priority := range priorities {
		values[i] = string(priority)
	}
	return dao.NewParameter(FieldPriority, values...)
}
