package approval

import (
	"context"
	"errors"

	model "github.com/viant/agentmesh/model/approval"
	"github.com/viant/agentmesh/policy"
	"github.com/viant/agentmesh/service/messaging"
)

// ErrDuplicatePolicy is returned by AddPolicy when the name is already registered.
var ErrDuplicatePolicy = errors.New("approval: duplicate policy")

// Callback observes approval events; panics are recovered by the service.
type Callback func(ctx context.Context, event *model.Event)

// Service defines the approval service interface.
type Service interface {
	// AddPolicy registers p after the existing policies.
	AddPolicy(p *policy.Policy) error

	// RemovePolicy removes the named policy; false when absent.
	RemovePolicy(name string) bool

	// Policies returns registered policies in registration order.
	Policies() []*policy.Policy

	// ShouldRequireApproval reports whether any policy triggers for the action.
	ShouldRequireApproval(kind model.ActionKind, data map[string]interface{}) bool

	// RequestApproval blocks until a decision is available. It never fails:
	// a timeout yields the governing policy's automatic decision and a
	// cancelled ctx yields a rejection.
	RequestApproval(ctx context.Context, kind model.ActionKind, agentID string, data map[string]interface{}, options ...RequestOption) *model.Response

	// SubmitResponse records a reviewer decision; false when the request is
	// not pending or the response is invalid.
	SubmitResponse(ctx context.Context, response *model.Response) bool

	// Pending lists undecided requests, most urgent and oldest first.
	Pending(ctx context.Context, filters ...PendingFilter) ([]*model.Request, error)

	// Request returns a pending request, or nil.
	Request(ctx context.Context, id string) *model.Request

	// Response returns the recorded decision for a request, or nil.
	Response(ctx context.Context, id string) *model.Response

	// History returns the last limit resolved requests (all when limit <= 0),
	// optionally restricted to one agent.
	History(limit int, agentID string) []*model.HistoryEntry

	ClearHistory()

	Statistics() *model.Statistics

	ResetStatistics()

	// RegisterCallback adds fn for topic; see the model Topic constants.
	RegisterCallback(topic string, fn Callback)

	// Queue returns the event queue, or nil when events are not published.
	Queue() messaging.Queue[model.Event]

	// Reset drops policies, pending requests, history, statistics and callbacks.
	Reset()
}
