package approval

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/viant/agentmesh/internal/clock"
	model "github.com/viant/agentmesh/model/approval"
)

// Feedback attached to decisions taken without consulting a reviewer.
const (
	FeedbackDisabled = "approval disabled"
	FeedbackNoPolicy = "no policy required approval"
)

// Result is the outcome of an approval check as seen by an agent.
type Result struct {
	Approved     bool                   `json:"approved"`
	Decision     model.Decision         `json:"decision"`
	ModifiedData map[string]interface{} `json:"modifiedData,omitempty"`
	Feedback     string                 `json:"feedback,omitempty"`
	// Response is the text to send, set by CheckResponseApproval only.
	Response string `json:"response,omitempty"`
}

func autoApproved(feedback string) *Result {
	return &Result{Approved: true, Decision: model.DecisionApproved, Feedback: feedback}
}

// ClientOption customises a Client.
type ClientOption func(c *Client)

// WithEnabled sets the initial enabled state (default true).
func WithEnabled(enabled bool) ClientOption {
	return func(c *Client) {
		c.enabled.Store(enabled)
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client gates one agent's actions on human approval.
type Client struct {
	agentID string
	svc     Service
	enabled atomic.Bool
	logger  *slog.Logger
}

// NewClient creates an enabled client for agentID.
func NewClient(agentID string, svc Service, options ...ClientOption) *Client {
	ret := &Client{agentID: agentID, svc: svc}
	ret.enabled.Store(true)
	for _, opt := range options {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	ret.logger = ret.logger.With("component", "approval.client", "agent", agentID)
	return ret
}

func (c *Client) Enable() {
	c.enabled.Store(true)
	c.logger.Info("approval enabled")
}

// Disable makes every check auto-approve without consulting the service.
func (c *Client) Disable() {
	c.enabled.Store(false)
	c.logger.Info("approval disabled")
}

func (c *Client) Enabled() bool {
	return c.enabled.Load()
}

// RequestHumanApproval asks for a decision on the action. Unless
// WithBypassCheck is given, actions no policy covers are approved at once.
func (c *Client) RequestHumanApproval(ctx context.Context, kind model.ActionKind, data map[string]interface{}, options ...RequestOption) *Result {
	if !c.Enabled() {
		return autoApproved(FeedbackDisabled)
	}
	opts := NewRequestOptions(options...)
	if !opts.BypassCheck && !c.svc.ShouldRequireApproval(kind, data) {
		return autoApproved(FeedbackNoPolicy)
	}
	c.logger.Info("requesting approval", "kind", kind)
	response := c.svc.RequestApproval(ctx, kind, c.agentID, data, options...)
	return &Result{
		Approved:     response.Decision.Approves(),
		Decision:     response.Decision,
		ModifiedData: response.ModifiedData,
		Feedback:     response.Feedback,
	}
}

// CheckResponseApproval gates a reply to a user. Result.Response holds the
// reviewer's replacement text when the response was modified.
func (c *Client) CheckResponseApproval(ctx context.Context, responseText, userQuery string, confidence float64, metadata map[string]interface{}) *Result {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	data := map[string]interface{}{
		"response":   responseText,
		"user_query": userQuery,
		"confidence": confidence,
		"metadata":   metadata,
	}
	result := c.RequestHumanApproval(ctx, model.ActionAgentResponse, data, WithContext(map[string]interface{}{
		"agent_id":  c.agentID,
		"timestamp": clock.Now().Format("2006-01-02T15:04:05.000Z07:00"),
	}))
	result.Response = responseText
	if result.Decision == model.DecisionModified {
		if text, ok := result.ModifiedData["response"].(string); ok {
			result.Response = text
		}
	}
	return result
}

// CheckAPICallApproval gates an external call.
func (c *Client) CheckAPICallApproval(ctx context.Context, apiName string, parameters map[string]interface{}, sensitive bool) *Result {
	return c.RequestHumanApproval(ctx, model.ActionAPICall, map[string]interface{}{
		"api_name":   apiName,
		"parameters": parameters,
		"sensitive":  sensitive,
	})
}

// CheckCollaborationApproval gates sharing data with another agent.
func (c *Client) CheckCollaborationApproval(ctx context.Context, targetAgent, collaborationType string, dataToShare map[string]interface{}) *Result {
	return c.RequestHumanApproval(ctx, model.ActionAgentCollaboration, map[string]interface{}{
		"target_agent":       targetAgent,
		"collaboration_type": collaborationType,
		"data_to_share":      dataToShare,
	})
}

// Action is executed once approved, with the (possibly modified) data.
type Action func(ctx context.Context, data map[string]interface{}) (interface{}, error)

// ExecuteWithApproval runs action when approved, merging reviewer
// modifications into a copy of data. When rejected it calls onRejected, if
// set, and returns nil without running action.
func (c *Client) ExecuteWithApproval(ctx context.Context, kind model.ActionKind, data map[string]interface{}, action Action, onRejected func(*Result)) (interface{}, error) {
	result := c.RequestHumanApproval(ctx, kind, data)
	if !result.Approved {
		c.logger.Info("action rejected", "kind", kind, "feedback", result.Feedback)
		if onRejected != nil {
			onRejected(result)
		}
		return nil, nil
	}
	merged := make(map[string]interface{}, len(data)+len(result.ModifiedData))
	for k, v := range data {
		merged[k] = v
	}
	for k, v := range result.ModifiedData {
		merged[k] = v
	}
	c.logger.Info("action approved", "kind", kind, "decision", result.Decision)
	return action(ctx, merged)
}
