package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/agentmesh/internal/clock"
	"github.com/viant/agentmesh/metrics"
	"github.com/viant/agentmesh/model/message"
	"github.com/viant/agentmesh/runtime/correlation"
	"github.com/viant/agentmesh/service/event"
	"github.com/viant/agentmesh/tracing"
)

// Handler processes an inbound envelope. A non-nil reply to a waiting
// REQUEST resolves it; an error or panic is logged and yields no reply.
type Handler func(ctx context.Context, env *message.Envelope) (*message.Envelope, error)

type agent struct {
	profile *message.Profile
	handler Handler
}

// Service is an in-process message broker. It is safe for concurrent use.
type Service struct {
	mu            sync.RWMutex
	agents        map[string]*agent
	order         []string
	logs          map[string][]*message.Envelope
	conversations map[string][]*message.Envelope
	slots         *correlation.Table[*message.Envelope]

	defaultTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	events         *event.Service
	tap            *event.Publisher[message.Envelope]
}

// New creates a broker.
func New(options ...Option) *Service {
	ret := &Service{
		agents:         make(map[string]*agent),
		logs:           make(map[string][]*message.Envelope),
		conversations:  make(map[string][]*message.Envelope),
		slots:          correlation.NewTable[*message.Envelope](),
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	ret.logger = ret.logger.With("component", "broker")
	if ret.events != nil {
		tap, err := event.PublisherOf[message.Envelope](ret.events)
		if err != nil {
			ret.logger.Warn("envelope events disabled", "error", err)
		}
		ret.tap = tap
	}
	return ret
}

// Register adds or replaces an agent. A replaced agent keeps its original
// registration position. It returns false only for a profile without id.
func (s *Service) Register(profile *message.Profile, handler Handler) bool {
	if profile == nil || profile.ID == "" {
		s.logger.Error("cannot register agent without id")
		return false
	}
	registered := profile.Clone()
	if registered.Status == "" {
		registered.Status = message.StatusActive
	}
	s.mu.Lock()
	_, exists := s.agents[profile.ID]
	s.agents[profile.ID] = &agent{profile: registered, handler: handler}
	if !exists {
		s.order = append(s.order, profile.ID)
	}
	count := len(s.agents)
	s.mu.Unlock()

	if exists {
		s.logger.Warn("agent re-registered, previous registration replaced", "agent", profile.ID)
	} else {
		s.logger.Info("agent registered", "agent", profile.ID, "type", profile.Type)
	}
	s.metrics.SetRegisteredAgents(count)
	return true
}

// Unregister removes an agent; its message log is kept.
func (s *Service) Unregister(id string) bool {
	s.mu.Lock()
	if _, ok := s.agents[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.agents, id)
	for i, candidate := range s.order {
		if candidate == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	count := len(s.agents)
	s.mu.Unlock()
	s.logger.Info("agent unregistered", "agent", id)
	s.metrics.SetRegisteredAgents(count)
	return true
}

// Profile returns a copy of the agent profile, or nil.
func (s *Service) Profile(id string) *message.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.agents[id]; ok {
		return a.profile.Clone()
	}
	return nil
}

// Profiles returns copies of every profile in registration order.
func (s *Service) Profiles() []*message.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]*message.Profile, 0, len(s.order))
	for _, id := range s.order {
		ret = append(ret, s.agents[id].profile.Clone())
	}
	return ret
}

// SetStatus updates an agent status.
func (s *Service) SetStatus(id string, status message.Status) bool {
	s.mu.Lock()
	a, ok := s.agents[id]
	if ok {
		a.profile.Status = status
	}
	s.mu.Unlock()
	if ok {
		s.logger.Info("agent status changed", "agent", id, "status", status)
	}
	return ok
}

// FindByCapability returns the first registered agent advertising capability.
func (s *Service) FindByCapability(capability string) *message.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if profile := s.agents[id].profile; profile.CanHandle(capability) {
			return profile.Clone()
		}
	}
	return nil
}

// FindAllByCapability returns every agent advertising capability, in registration order.
func (s *Service) FindAllByCapability(capability string) []*message.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ret []*message.Profile
	for _, id := range s.order {
		if profile := s.agents[id].profile; profile.CanHandle(capability) {
			ret = append(ret, profile.Clone())
		}
	}
	return ret
}

// Send delivers env to its recipient and returns the reply, if any.
//
// Unknown or offline recipients, handler failures, timeouts and context
// cancellation all yield nil. Only REQUEST and HANDOFF sends wait. A
// RESPONSE whose ReplyTo names a request waiting on its sender resolves it.
func (s *Service) Send(ctx context.Context, env *message.Envelope, options ...SendOption) *message.Envelope {
	if env == nil {
		s.logger.Error("cannot send nil envelope")
		return nil
	}
	opts := &sendOptions{timeout: s.defaultTimeout}
	for _, opt := range options {
		opt(opts)
	}
	started := clock.Now()
	ctx, span := tracing.StartSpan(ctx, "broker.send", tracing.KindProducer)
	span.WithAttributes(map[string]string{
		"message.id":        env.ID,
		"message.kind":      string(env.Kind),
		"message.sender":    env.Sender,
		"message.recipient": env.Recipient,
	})
	reply, outcome, err := s.send(ctx, env, opts)
	if outcome == metrics.OutcomeTimeout {
		span.AddEvent("timeout", map[string]string{"after": opts.timeout.String()})
	}
	tracing.EndSpan(span, err)
	s.metrics.MessageRouted(string(env.Kind), outcome, clock.Now().Sub(started))
	return reply
}

func (s *Service) send(ctx context.Context, env *message.Envelope, opts *sendOptions) (*message.Envelope, string, error) {
	s.mu.RLock()
	recipient, ok := s.agents[env.Recipient]
	var handler Handler
	var status message.Status
	if ok {
		handler, status = recipient.handler, recipient.profile.Status
	}
	s.mu.RUnlock()
	if !ok {
		s.logger.Error("recipient not found", "recipient", env.Recipient, "sender", env.Sender, "id", env.ID)
		return nil, metrics.OutcomeNoRecipient, fmt.Errorf("recipient %q not found", env.Recipient)
	}
	if status == message.StatusOffline {
		s.logger.Warn("recipient is offline", "recipient", env.Recipient, "sender", env.Sender, "id", env.ID)
		return nil, metrics.OutcomeNoRecipient, fmt.Errorf("recipient %q is offline", env.Recipient)
	}

	s.record(env)
	s.publish(ctx, env)
	s.logger.Debug("routing message", "id", env.ID, "kind", env.Kind, "sender", env.Sender, "recipient", env.Recipient)

	if env.Kind == message.KindResponse && env.ReplyTo != "" {
		if s.slots.ResolveFrom(env.ReplyTo, env.Sender, env) {
			s.logger.Debug("request resolved", "id", env.ReplyTo, "by", env.Sender)
		}
	}

	if !opts.wait || !env.Kind.Correlated() {
		reply, err := s.invoke(ctx, handler, env)
		if err != nil {
			s.logger.Error("handler failed", "recipient", env.Recipient, "id", env.ID, "error", err)
			return nil, metrics.OutcomeHandlerError, err
		}
		if reply != nil {
			s.record(reply)
		}
		return reply, metrics.OutcomeDelivered, nil
	}
	return s.await(ctx, handler, env, opts.timeout)
}

// await opens the correlation slot before delivery so that a reply arriving
// while the handler still runs is not lost.
func (s *Service) await(ctx context.Context, handler Handler, env *message.Envelope, timeout time.Duration) (*message.Envelope, string, error) {
	slot := s.slots.Open(env.ID, env.Recipient)
	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	failed := make(chan error, 1)
	go func() {
		reply, err := s.invoke(handlerCtx, handler, env)
		switch {
		case err != nil:
			failed <- err
		case reply != nil:
			if slot := s.slots.Take(env.ID); slot != nil {
				s.record(reply)
				slot.Deliver(reply)
			}
		}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var outcome string
	var cause error
	select {
	case reply, ok := <-slot.Done():
		if !ok {
			return nil, metrics.OutcomeCancelled, fmt.Errorf("request %s dropped by reset", env.ID)
		}
		return reply, metrics.OutcomeDelivered, nil
	case cause = <-failed:
		outcome = metrics.OutcomeHandlerError
	case <-expired:
		outcome, cause = metrics.OutcomeTimeout, fmt.Errorf("no response to %s within %s", env.ID, timeout)
	case <-ctx.Done():
		outcome, cause = metrics.OutcomeCancelled, ctx.Err()
	}
	if !s.slots.Discard(env.ID) {
		// resolved concurrently; the value is already buffered
		if reply, ok := <-slot.Done(); ok {
			return reply, metrics.OutcomeDelivered, nil
		}
		return nil, metrics.OutcomeCancelled, fmt.Errorf("request %s dropped by reset", env.ID)
	}
	switch outcome {
	case metrics.OutcomeHandlerError:
		s.logger.Error("handler failed", "recipient", env.Recipient, "id", env.ID, "error", cause)
	case metrics.OutcomeTimeout:
		s.logger.Warn("request timed out", "recipient", env.Recipient, "id", env.ID, "timeout", timeout)
	default:
		s.logger.Info("request cancelled", "recipient", env.Recipient, "id", env.ID, "error", cause)
	}
	return nil, outcome, cause
}

func (s *Service) invoke(ctx context.Context, handler Handler, env *message.Envelope) (reply *message.Envelope, err error) {
	if handler == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", env.Recipient, r)
		}
	}()
	return handler(ctx, env)
}

// Resolve completes a waiting request with reply. It returns false when no
// request is waiting on reply.ReplyTo, it was already resolved, or reply was
// not sent by the request recipient.
func (s *Service) Resolve(reply *message.Envelope) bool {
	if reply == nil || reply.ReplyTo == "" {
		return false
	}
	slot := s.slots.TakeFrom(reply.ReplyTo, reply.Sender)
	if slot == nil {
		return false
	}
	s.record(reply)
	slot.Deliver(reply)
	return true
}

// Broadcast sends a clone of env to every non-offline agent other than the
// sender and excluded ids, without waiting. It returns the number of sends.
// Each fan-out is also counted once under the broadcast outcome.
func (s *Service) Broadcast(ctx context.Context, env *message.Envelope, exclude ...string) int {
	if env == nil {
		return 0
	}
	skip := map[string]bool{env.Sender: true}
	for _, id := range exclude {
		skip[id] = true
	}
	var recipients []string
	s.mu.RLock()
	for _, id := range s.order {
		if skip[id] || s.agents[id].profile.Status == message.StatusOffline {
			continue
		}
		recipients = append(recipients, id)
	}
	s.mu.RUnlock()

	started := clock.Now()
	for _, id := range recipients {
		s.Send(ctx, env.Clone(id), WithWait(false))
	}
	s.metrics.MessageRouted(string(env.Kind), metrics.OutcomeBroadcast, clock.Now().Sub(started))
	s.logger.Debug("broadcast", "sender", env.Sender, "recipients", len(recipients))
	return len(recipients)
}

func (s *Service) record(env *message.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[env.Sender] = append(s.logs[env.Sender], env)
	if env.Recipient != env.Sender {
		s.logs[env.Recipient] = append(s.logs[env.Recipient], env)
	}
	if env.ConversationID != "" {
		s.conversations[env.ConversationID] = append(s.conversations[env.ConversationID], env)
	}
}

func (s *Service) publish(ctx context.Context, env *message.Envelope) {
	if s.tap == nil {
		return
	}
	evt := event.NewEvent(&event.Context{
		Source:         "broker",
		Topic:          string(env.Kind),
		AgentID:        env.Recipient,
		ConversationID: env.ConversationID,
	}, *env)
	if err := s.tap.Publish(ctx, evt); err != nil {
		s.logger.Debug("envelope event dropped", "id", env.ID, "error", err)
	}
}

// Conversation returns the messages of a conversation in send order.
func (s *Service) Conversation(id string) []*message.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*message.Envelope(nil), s.conversations[id]...)
}

// Messages returns the last limit messages sent or received by agentID;
// limit <= 0 returns all of them.
func (s *Service) Messages(agentID string, limit int) []*message.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.logs[agentID]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	return append([]*message.Envelope(nil), log...)
}

// ClearHistory drops one conversation, or every log when conversationID is empty.
func (s *Service) ClearHistory(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conversationID == "" {
		s.logs = make(map[string][]*message.Envelope)
		s.conversations = make(map[string][]*message.Envelope)
		return
	}
	delete(s.conversations, conversationID)
	for id, log := range s.logs {
		kept := log[:0:0]
		for _, env := range log {
			if env.ConversationID != conversationID {
				kept = append(kept, env)
			}
		}
		s.logs[id] = kept
	}
}

// Pending returns the number of requests waiting for a reply.
func (s *Service) Pending() int {
	return s.slots.Len()
}

// Reset drops the registry, logs and waiting requests; waiters return nil.
func (s *Service) Reset() {
	s.mu.Lock()
	s.agents = make(map[string]*agent)
	s.order = nil
	s.logs = make(map[string][]*message.Envelope)
	s.conversations = make(map[string][]*message.Envelope)
	s.mu.Unlock()
	s.slots.Reset()
	s.metrics.SetRegisteredAgents(0)
	s.logger.Info("broker reset")
}
