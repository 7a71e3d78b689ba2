package message

import (
	"time"

	"github.com/viant/agentmesh/internal/clock"
	"github.com/viant/agentmesh/internal/idgen"
)

// Kind identifies the purpose of an envelope.
type Kind string

const (
	KindRequest      Kind = "request"
	KindResponse     Kind = "response"
	KindNotification Kind = "notification"
	KindQuery        Kind = "query"
	KindHandoff      Kind = "handoff"
)

// Correlated reports whether a sender may wait for a reply to this kind.
func (k Kind) Correlated() bool {
	return k == KindRequest || k == KindHandoff
}

// Priority is advisory; the broker delivers in call order regardless.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Envelope is one message routed by the broker between two workers.
// Exactly one payload matching Kind is expected to be set.
type Envelope struct {
	ID             string                 `json:"id"`
	Sender         string                 `json:"sender"`
	Recipient      string                 `json:"recipient"`
	Kind           Kind                   `json:"kind"`
	Priority       Priority               `json:"priority"`
	ConversationID string                 `json:"conversationId,omitempty"`
	ReplyTo        string                 `json:"replyTo,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`

	Request      *Request      `json:"request,omitempty"`
	Response     *Response     `json:"response,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Handoff      *Handoff      `json:"handoff,omitempty"`
	Query        *Query        `json:"query,omitempty"`
}

// Option customises a newly built envelope.
type Option func(e *Envelope)

// WithPriority overrides the default priority.
func WithPriority(p Priority) Option {
	return func(e *Envelope) { e.Priority = p }
}

// WithConversation groups the envelope under conversationID.
func WithConversation(conversationID string) Option {
	return func(e *Envelope) { e.ConversationID = conversationID }
}

// WithMetadata attaches free-form metadata.
func WithMetadata(metadata map[string]interface{}) Option {
	return func(e *Envelope) { e.Metadata = metadata }
}

func newEnvelope(sender, recipient string, kind Kind, options []Option) *Envelope {
	ret := &Envelope{
		ID:        idgen.New(),
		Sender:    sender,
		Recipient: recipient,
		Kind:      kind,
		Priority:  PriorityNormal,
		CreatedAt: clock.Now(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// NewRequest builds a REQUEST envelope. A conversation id is assigned when
// none is supplied so that the reply can be grouped with it.
func NewRequest(sender, recipient, task string, parameters, context map[string]interface{}, options ...Option) *Envelope {
	ret := newEnvelope(sender, recipient, KindRequest, options)
	if ret.ConversationID == "" {
		ret.ConversationID = idgen.New()
	}
	if context == nil {
		context = map[string]interface{}{}
	}
	ret.Request = &Request{Task: task, Parameters: parameters, Context: context}
	return ret
}

// NewResponse builds a RESPONSE envelope answering the request identified by replyTo.
func NewResponse(sender, recipient string, success bool, data interface{}, errMessage, replyTo, conversationID string) *Envelope {
	ret := newEnvelope(sender, recipient, KindResponse, []Option{WithConversation(conversationID)})
	ret.ReplyTo = replyTo
	ret.Response = &Response{Success: success, Data: data, Error: errMessage, Metadata: map[string]interface{}{}}
	return ret
}

// ReplyTo builds a RESPONSE addressed back to the sender of request.
func ReplyTo(request *Envelope, success bool, data interface{}, errMessage string) *Envelope {
	return NewResponse(request.Recipient, request.Sender, success, data, errMessage, request.ID, request.ConversationID)
}

// NewNotification builds a NOTIFICATION envelope; error severity is raised to high priority.
func NewNotification(sender, recipient, event string, data map[string]interface{}, severity Severity, options ...Option) *Envelope {
	if severity == "" {
		severity = SeverityInfo
	}
	ret := newEnvelope(sender, recipient, KindNotification, nil)
	if severity == SeverityError {
		ret.Priority = PriorityHigh
	}
	for _, option := range options {
		option(ret)
	}
	ret.Notification = &Notification{Event: event, Data: data, Severity: severity}
	return ret
}

// NewHandoff builds a HANDOFF envelope carrying the original user input.
func NewHandoff(sender, recipient, task string, context map[string]interface{}, reason, userMessage, conversationID string) *Envelope {
	ret := newEnvelope(sender, recipient, KindHandoff, []Option{WithConversation(conversationID), WithPriority(PriorityHigh)})
	ret.Handoff = &Handoff{Task: task, Context: context, Reason: reason, UserMessage: userMessage}
	return ret
}

// NewQuery builds a QUERY envelope asking about a capability.
func NewQuery(sender, recipient, capability string, options ...Option) *Envelope {
	ret := newEnvelope(sender, recipient, KindQuery, options)
	ret.Query = &Query{Capability: capability}
	return ret
}

// Clone returns a copy with a fresh identifier addressed to recipient.
// Payload pointers and maps are shallow-copied so that the clone can be
// mutated without touching the original envelope.
func (e *Envelope) Clone(recipient string) *Envelope {
	ret := *e
	ret.ID = idgen.New()
	ret.Recipient = recipient
	ret.CreatedAt = clock.Now()
	ret.Metadata = copyMap(e.Metadata)
	if e.Request != nil {
		r := *e.Request
		r.Parameters = copyMap(r.Parameters)
		r.Context = copyMap(r.Context)
		ret.Request = &r
	}
	if e.Response != nil {
		r := *e.Response
		r.Metadata = copyMap(r.Metadata)
		ret.Response = &r
	}
	if e.Notification != nil {
		n := *e.Notification
		n.Data = copyMap(n.Data)
		ret.Notification = &n
	}
	if e.Handoff != nil {
		h := *e.Handoff
		h.Context = copyMap(h.Context)
		ret.Handoff = &h
	}
	if e.Query != nil {
		q := *e.Query
		ret.Query = &q
	}
	return &ret
}

// Task returns the request or handoff task name.
func (e *Envelope) Task() string {
	switch {
	case e == nil:
		return ""
	case e.Request != nil:
		return e.Request.Task
	case e.Handoff != nil:
		return e.Handoff.Task
	}
	return ""
}

// Succeeded reports whether e is a successful response.
func (e *Envelope) Succeeded() bool {
	return e != nil && e.Response != nil && e.Response.Success
}

func copyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	ret := make(map[string]interface{}, len(src))
	for k, v := range src {
		ret[k] = v
	}
	return ret
}
