package approval

import (
	"errors"
	"fmt"
	"time"
)

// ActionKind enumerates the domain actions that may be gated.
type ActionKind string

const (
	ActionAgentResponse      ActionKind = "agent_response"
	ActionAgentHandoff       ActionKind = "agent_handoff"
	ActionAPICall            ActionKind = "api_call"
	ActionDataRetrieval      ActionKind = "data_retrieval"
	ActionAgentCollaboration ActionKind = "agent_collaboration"
	ActionUserNotification   ActionKind = "user_notification"
	ActionCustom             ActionKind = "custom"
)

// ActionKinds lists every known action kind.
func ActionKinds() []ActionKind {
	return []ActionKind{
		ActionAgentResponse,
		ActionAgentHandoff,
		ActionAPICall,
		ActionDataRetrieval,
		ActionAgentCollaboration,
		ActionUserNotification,
		ActionCustom,
	}
}

// Decision is the outcome recorded for a request.
type Decision string

const (
	DecisionApproved  Decision = "approved"
	DecisionRejected  Decision = "rejected"
	DecisionModified  Decision = "modified"
	DecisionEscalated Decision = "escalated"
	DecisionNeedsInfo Decision = "needs_more_info"
	// DecisionPending marks an undecided request; it is never a valid submission.
	DecisionPending Decision = "pending"
)

// Approves reports whether the decision lets the action proceed.
func (d Decision) Approves() bool {
	return d == DecisionApproved || d == DecisionModified
}

// Priority orders pending requests for reviewers.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns the review order, most urgent first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// Request is a pending human-approval request.
type Request struct {
	ID         string                 `json:"id"`
	ActionKind ActionKind             `json:"actionKind"`
	AgentID    string                 `json:"agentId"`
	ActionData map[string]interface{} `json:"actionData,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Priority   Priority               `json:"priority"`
	CreatedAt  time.Time              `json:"createdAt"`
	ExpiresAt  *time.Time             `json:"expiresAt,omitempty"` // CreatedAt + timeout
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Timeout returns the wait budget encoded by ExpiresAt, or 0 for none.
func (r *Request) Timeout() time.Duration {
	if r == nil || r.ExpiresAt == nil {
		return 0
	}
	return r.ExpiresAt.Sub(r.CreatedAt)
}

// ErrInvalidResponse is returned by Response.Validate.
var ErrInvalidResponse = errors.New("approval: invalid response")

// Response is the decision recorded for a request.
type Response struct {
	RequestID    string                 `json:"requestId"`
	Decision     Decision               `json:"decision"`
	ModifiedData map[string]interface{} `json:"modifiedData,omitempty"` // set iff Decision == modified
	Feedback     string                 `json:"feedback,omitempty"`
	DecidedBy    string                 `json:"decidedBy,omitempty"`
	DecidedAt    time.Time              `json:"decidedAt"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the response shape.
func (r *Response) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil response", ErrInvalidResponse)
	}
	if r.RequestID == "" {
		return fmt.Errorf("%w: empty request id", ErrInvalidResponse)
	}
	switch r.Decision {
	case DecisionApproved, DecisionRejected, DecisionEscalated, DecisionNeedsInfo:
		if r.ModifiedData != nil {
			return fmt.Errorf("%w: modified data requires decision %q", ErrInvalidResponse, DecisionModified)
		}
	case DecisionModified:
		if r.ModifiedData == nil {
			return fmt.Errorf("%w: decision %q requires modified data", ErrInvalidResponse, DecisionModified)
		}
	default:
		return fmt.Errorf("%w: unsupported decision %q", ErrInvalidResponse, r.Decision)
	}
	return nil
}

// HistoryEntry is one resolved request kept for audit.
type HistoryEntry struct {
	Request     *Request  `json:"request"`
	Response    *Response `json:"response"`
	CompletedAt time.Time `json:"completedAt"`
}

// Statistics summarises approval activity.
type Statistics struct {
	TotalRequests    int     `json:"totalRequests"`
	Approved         int     `json:"approved"`
	Rejected         int     `json:"rejected"`
	Modified         int     `json:"modified"`
	Timeout          int     `json:"timeout"`
	Pending          int     `json:"pending"`
	ActivePolicies   int     `json:"activePolicies"`
	ApprovalRate     float64 `json:"approvalRate"`
	ModificationRate float64 `json:"modificationRate"`
	TimeoutRate      float64 `json:"timeoutRate"`
}

// Standard event topics.
const (
	TopicRequestCreated  = "request.created"
	TopicRequestExpired  = "request.expired"
	TopicDecisionCreated = "decision.created"
)

// Event is published whenever a request is created or resolved.
type Event struct {
	Topic    string            `json:"topic"`
	Request  *Request          `json:"request,omitempty"`
	Response *Response         `json:"response,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
}
