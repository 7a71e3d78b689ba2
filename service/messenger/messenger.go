package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/viant/agentmesh/model/message"
	"github.com/viant/agentmesh/service/broker"
)

// Messenger connects an agent to a broker: it registers the agent profile,
// dispatches inbound envelopes to the agent Handler and sends on its behalf.
type Messenger struct {
	broker         *broker.Service
	handler        Handler
	profile        *message.Profile
	handoffTimeout time.Duration
	logger         *slog.Logger
}

// New creates a messenger and registers the agent with b.
func New(b *broker.Service, id, agentType string, handler Handler, options ...Option) *Messenger {
	ret := &Messenger{
		broker:         b,
		handler:        handler,
		profile:        &message.Profile{ID: id, Type: agentType, Status: message.StatusActive},
		handoffTimeout: DefaultHandoffTimeout,
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.handler == nil {
		ret.handler = Unimplemented{}
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	ret.logger = ret.logger.With("component", "messenger", "agent", id)
	b.Register(ret.profile, ret.Dispatch)
	ret.logger.Info("agent connected", "type", agentType)
	return ret
}

// ID returns the agent id.
func (m *Messenger) ID() string {
	return m.profile.ID
}

// Dispatch routes an inbound envelope by kind. Handler errors and panics are
// converted to a failed RESPONSE addressed back to the sender; the returned
// error is always nil.
func (m *Messenger) Dispatch(ctx context.Context, env *message.Envelope) (reply *message.Envelope, _ error) {
	defer func() {
		if r := recover(); r != nil {
			reply = m.failure(env, fmt.Errorf("panic: %v", r))
		}
	}()
	m.logger.Debug("message received", "id", env.ID, "kind", env.Kind, "sender", env.Sender)
	var err error
	switch env.Kind {
	case message.KindRequest:
		reply, err = m.handler.HandleRequest(ctx, env)
	case message.KindHandoff:
		reply, err = m.handler.HandleHandoff(ctx, env)
	case message.KindNotification:
		err = m.handler.HandleNotification(ctx, env)
	case message.KindResponse:
		if responder, ok := m.handler.(ResponseHandler); ok {
			err = responder.HandleResponse(ctx, env)
		} else {
			m.logger.Debug("response received", "id", env.ID, "replyTo", env.ReplyTo)
		}
	default:
		m.logger.Warn("unhandled message kind", "id", env.ID, "kind", env.Kind)
	}
	if err != nil {
		return m.failure(env, err), nil
	}
	return reply, nil
}

func (m *Messenger) failure(env *message.Envelope, err error) *message.Envelope {
	m.logger.Error("failed to handle message", "id", env.ID, "kind", env.Kind, "error", err)
	return message.NewResponse(m.profile.ID, env.Sender, false, nil, err.Error(), env.ID, env.ConversationID)
}

// SendRequest sends a task to recipient and, unless WithoutWait is given,
// waits for the reply. It returns nil on routing failure or timeout.
func (m *Messenger) SendRequest(ctx context.Context, recipient, task string, parameters map[string]interface{}, options ...RequestOption) *message.Envelope {
	opts := &requestOptions{}
	for _, opt := range options {
		opt(opts)
	}
	var envOptions []message.Option
	if opts.conversation != "" {
		envOptions = append(envOptions, message.WithConversation(opts.conversation))
	}
	if opts.priority != "" {
		envOptions = append(envOptions, message.WithPriority(opts.priority))
	}
	env := message.NewRequest(m.profile.ID, recipient, task, parameters, opts.context, envOptions...)
	sendOptions := []broker.SendOption{broker.WithWait(!opts.noWait)}
	if opts.timeout > 0 {
		sendOptions = append(sendOptions, broker.WithTimeout(opts.timeout))
	}
	return m.broker.Send(ctx, env, sendOptions...)
}

// SendNotification sends a fire-and-forget notification.
func (m *Messenger) SendNotification(ctx context.Context, recipient, event string, data map[string]interface{}, severity message.Severity) {
	m.broker.Send(ctx, message.NewNotification(m.profile.ID, recipient, event, data, severity))
}

// HandoffTo transfers a conversation to recipient and waits for its
// acknowledgement within the handoff timeout.
func (m *Messenger) HandoffTo(ctx context.Context, recipient, task, userMessage string, handoffContext map[string]interface{}, reason, conversationID string) *message.Envelope {
	env := message.NewHandoff(m.profile.ID, recipient, task, handoffContext, reason, userMessage, conversationID)
	m.logger.Info("handing off", "recipient", recipient, "task", task, "reason", reason)
	return m.broker.Send(ctx, env, broker.WithWait(true), broker.WithTimeout(m.handoffTimeout))
}

// RequestByCapability sends a waiting request to the first agent advertising
// capability. It returns nil when no agent does.
func (m *Messenger) RequestByCapability(ctx context.Context, capability, task string, parameters map[string]interface{}, options ...RequestOption) *message.Envelope {
	profile := m.broker.FindByCapability(capability)
	if profile == nil {
		m.logger.Warn("no agent found with capability", "capability", capability)
		return nil
	}
	m.logger.Info("agent found for capability", "capability", capability, "recipient", profile.ID)
	return m.SendRequest(ctx, profile.ID, task, parameters, options...)
}

// Reply answers request asynchronously. A sender still waiting receives the
// reply directly; otherwise it is delivered as a RESPONSE message. It
// reports whether a waiting sender was resolved.
func (m *Messenger) Reply(ctx context.Context, request *message.Envelope, success bool, data interface{}, errMessage string) bool {
	reply := message.NewResponse(m.profile.ID, request.Sender, success, data, errMessage, request.ID, request.ConversationID)
	if m.broker.Resolve(reply) {
		return true
	}
	m.broker.Send(ctx, reply)
	return false
}

// Agents lists every registered agent.
func (m *Messenger) Agents() []*message.Profile {
	return m.broker.Profiles()
}

// AgentProfile returns the profile of another agent, or nil.
func (m *Messenger) AgentProfile(id string) *message.Profile {
	return m.broker.Profile(id)
}

// Profile returns this agent's current profile.
func (m *Messenger) Profile() *message.Profile {
	return m.broker.Profile(m.profile.ID)
}

// Activate marks the agent active.
func (m *Messenger) Activate() {
	if m.broker.SetStatus(m.profile.ID, message.StatusActive) {
		m.logger.Info("agent activated")
	}
}

// Deactivate marks the agent offline; the broker stops delivering to it.
func (m *Messenger) Deactivate() {
	if m.broker.SetStatus(m.profile.ID, message.StatusOffline) {
		m.logger.Info("agent deactivated")
	}
}

// Close unregisters the agent.
func (m *Messenger) Close() {
	m.broker.Unregister(m.profile.ID)
}
