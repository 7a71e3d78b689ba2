package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/viant/agentmesh/internal/clock"
	"github.com/viant/agentmesh/internal/idgen"
	"github.com/viant/agentmesh/metrics"
	model "github.com/viant/agentmesh/model/approval"
	"github.com/viant/agentmesh/policy"
	"github.com/viant/agentmesh/runtime/correlation"
	"github.com/viant/agentmesh/service/approval"
	"github.com/viant/agentmesh/service/dao"
	"github.com/viant/agentmesh/service/dao/criteria"
	"github.com/viant/agentmesh/service/dao/store"
	"github.com/viant/agentmesh/service/event"
	"github.com/viant/agentmesh/service/messaging"
	qmem "github.com/viant/agentmesh/service/messaging/memory"
	"github.com/viant/agentmesh/stats"
	"github.com/viant/agentmesh/tracing"
)

// DefaultHistoryLimit is the number of resolved requests kept for audit.
const DefaultHistoryLimit = 1000

const (
	systemReviewer  = "system"
	timeoutFeedback = "automatic decision due to timeout"
	cancelFeedback  = "request cancelled"
	resetFeedback   = "approval service reset"

	sourceHuman   = "human"
	sourceTimeout = "timeout"
	sourceCancel  = "cancelled"
)

type service struct {
	mu           sync.RWMutex
	policies     []*policy.Policy
	history      []*model.HistoryEntry
	historyLimit int
	callbacks    map[string][]approval.Callback
	initial      []*policy.Policy

	requests  *store.MemoryStore[string, model.Request]
	responses dao.Service[string, model.Response]
	slots     *correlation.Table[*model.Response]
	counters  *stats.Counters

	queue     messaging.Queue[model.Event]
	queueSet  bool
	events    *event.Service
	publisher *event.Publisher[model.Event]
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func reqKey(r *model.Request) string   { return r.ID }
func respKey(r *model.Response) string { return r.RequestID }

func requestFields(r *model.Request) criteria.Fields {
	return func(name string) (string, bool) {
		switch name {
		case approval.FieldAgentID:
			return r.AgentID, true
		case approval.FieldActionKind:
			return string(r.ActionKind), true
		case approval.FieldPriority:
			return string(r.Priority), true
		}
		return "", false
	}
}

func matchRequest(r *model.Request, parameters []*dao.Parameter) bool {
	return criteria.Match(requestFields(r), parameters)
}

// New creates an in-memory approval service.
func New(options ...Option) approval.Service {
	ret := &service{
		historyLimit: DefaultHistoryLimit,
		callbacks:    make(map[string][]approval.Callback),
		requests:     store.NewMemoryStore[string, model.Request](reqKey, store.WithMatcher[string, model.Request](matchRequest)),
		slots:        correlation.NewTable[*model.Response](),
		counters:     &stats.Counters{},
	}
	for _, option := range options {
		option(ret)
	}
	if ret.logger == nil {
		ret.logger = slog.Default()
	}
	ret.logger = ret.logger.With("component", "approval")
	if ret.responses == nil {
		ret.responses = store.NewMemoryStore[string, model.Response](respKey)
	}
	if !ret.queueSet {
		cfg := qmem.DefaultConfig()
		cfg.DropWhenFull = true
		ret.queue = qmem.NewQueue[model.Event](cfg)
	}
	if ret.events != nil {
		publisher, err := event.PublisherOf[model.Event](ret.events)
		if err != nil {
			ret.logger.Warn("approval events disabled", "error", err)
		}
		ret.publisher = publisher
	}
	for _, p := range ret.initial {
		if err := ret.AddPolicy(p); err != nil {
			ret.logger.Warn("policy skipped", "error", err)
		}
	}
	ret.initial = nil
	return ret
}

/* ---------------- policies -------------------------------------------- */

func (s *service) AddPolicy(p *policy.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.policies {
		if existing.Name == p.Name {
			return fmt.Errorf("%w: %s", approval.ErrDuplicatePolicy, p.Name)
		}
	}
	s.policies = append(s.policies, p.Clone())
	s.logger.Info("policy added", "policy", p.Name)
	return nil
}

func (s *service) RemovePolicy(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.policies {
		if p.Name == name {
			s.policies = append(s.policies[:i:i], s.policies[i+1:]...)
			s.logger.Info("policy removed", "policy", name)
			return true
		}
	}
	return false
}

func (s *service) Policies() []*policy.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]*policy.Policy, len(s.policies))
	for i, p := range s.policies {
		ret[i] = p.Clone()
	}
	return ret
}

func (s *service) ShouldRequireApproval(kind model.ActionKind, data map[string]interface{}) bool {
	return s.governing(kind, data) != nil
}

// governing returns the first registered policy that triggers, or nil.
// Conditions run outside the lock.
func (s *service) governing(kind model.ActionKind, data map[string]interface{}) *policy.Policy {
	s.mu.RLock()
	policies := append([]*policy.Policy(nil), s.policies...)
	s.mu.RUnlock()
	for _, p := range policies {
		outcome, err := p.Evaluate(kind, data)
		if outcome == policy.Failed {
			s.logger.Warn("policy condition failed, requiring approval", "policy", p.Name, "error", err)
		}
		if outcome.Triggers() {
			return p
		}
	}
	return nil
}

/* ---------------- requests -------------------------------------------- */

func (s *service) RequestApproval(ctx context.Context, kind model.ActionKind, agentID string, data map[string]interface{}, options ...approval.RequestOption) *model.Response {
	opts := approval.NewRequestOptions(options...)
	governing := s.governing(kind, data)
	var timeout time.Duration
	if governing != nil {
		timeout = governing.Timeout
	}
	if opts.HasTimeout {
		timeout = opts.Timeout
	}
	metadata := make(map[string]interface{}, len(opts.Metadata)+1)
	for k, v := range opts.Metadata {
		metadata[k] = v
	}
	if governing != nil {
		metadata["policy"] = governing.Name
	}
	now := clock.Now()
	request := &model.Request{
		ID:         idgen.New(),
		ActionKind: kind,
		AgentID:    agentID,
		ActionData: data,
		Context:    opts.Context,
		Priority:   governing.PriorityOrDefault(),
		CreatedAt:  now,
		ExpiresAt:  clock.Deadline(now, timeout),
		Metadata:   metadata,
	}

	ctx, span := tracing.StartSpan(ctx, "approval.request", tracing.KindInternal)
	span.WithAttributes(map[string]string{
		"approval.id":       request.ID,
		"approval.kind":     string(kind),
		"approval.agent":    agentID,
		"approval.priority": string(request.Priority),
	})

	slot := s.slots.Open(request.ID, "")
	_ = s.requests.Save(ctx, request)
	s.counters.Update(stats.Delta{Total: 1})
	s.metrics.ApprovalRequested(string(kind))
	s.logger.Info("approval requested", "id", request.ID, "kind", kind, "agent", agentID, "priority", request.Priority, "timeout", timeout)
	s.emit(ctx, &model.Event{Topic: model.TopicRequestCreated, Request: request})

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var response *model.Response
	select {
	case resp, ok := <-slot.Done():
		response = s.received(request, resp, ok)
	case <-expired:
		span.AddEvent("timeout", map[string]string{"after": timeout.String()})
		response = s.expire(ctx, request, slot, governing.AutoDecisionOrDefault())
	case <-ctx.Done():
		response = s.abandon(context.WithoutCancel(ctx), request, slot)
	}
	span.WithAttributes(map[string]string{"approval.decision": string(response.Decision)})
	tracing.EndSpan(span, nil)
	return response
}

// received maps a slot read to a response; a closed slot means Reset.
func (s *service) received(request *model.Request, resp *model.Response, ok bool) *model.Response {
	if ok && resp != nil {
		return resp
	}
	return s.systemResponse(request, model.DecisionRejected, resetFeedback)
}

// expire applies the automatic decision unless a reviewer won the race.
func (s *service) expire(ctx context.Context, request *model.Request, slot *correlation.Slot[*model.Response], decision model.Decision) *model.Response {
	if !s.slots.Discard(request.ID) {
		resp, ok := <-slot.Done()
		return s.received(request, resp, ok)
	}
	response := s.systemResponse(request, decision, timeoutFeedback)
	s.logger.Warn("approval timed out", "id", request.ID, "decision", decision)
	s.complete(ctx, request, response, stats.Delta{Timeout: 1}, sourceTimeout, model.TopicRequestExpired)
	return response
}

// abandon rejects a request whose caller went away.
func (s *service) abandon(ctx context.Context, request *model.Request, slot *correlation.Slot[*model.Response]) *model.Response {
	if !s.slots.Discard(request.ID) {
		resp, ok := <-slot.Done()
		return s.received(request, resp, ok)
	}
	response := s.systemResponse(request, model.DecisionRejected, cancelFeedback)
	s.logger.Info("approval cancelled", "id", request.ID)
	s.complete(ctx, request, response, stats.Delta{}, sourceCancel, model.TopicRequestExpired)
	return response
}

func (s *service) systemResponse(request *model.Request, decision model.Decision, feedback string) *model.Response {
	return &model.Response{
		RequestID: request.ID,
		Decision:  decision,
		Feedback:  feedback,
		DecidedBy: systemReviewer,
		DecidedAt: clock.Now(),
	}
}

func (s *service) SubmitResponse(ctx context.Context, response *model.Response) bool {
	if err := response.Validate(); err != nil {
		s.logger.Warn("response rejected", "error", err)
		return false
	}
	request, _ := s.requests.Load(ctx, response.RequestID)
	if request == nil {
		s.logger.Warn("no pending request", "id", response.RequestID)
		return false
	}
	slot := s.slots.Take(response.RequestID)
	if slot == nil {
		return false
	}
	resp := *response
	if resp.DecidedAt.IsZero() {
		resp.DecidedAt = clock.Now()
	}
	s.complete(ctx, request, &resp, decisionDelta(resp.Decision), sourceHuman, model.TopicDecisionCreated)
	slot.Deliver(&resp)
	return true
}

func decisionDelta(decision model.Decision) stats.Delta {
	switch decision {
	case model.DecisionApproved:
		return stats.Delta{Approved: 1}
	case model.DecisionRejected:
		return stats.Delta{Rejected: 1}
	case model.DecisionModified:
		return stats.Delta{Modified: 1}
	}
	return stats.Delta{}
}

// complete moves a resolved request into history. The caller must own the slot.
func (s *service) complete(ctx context.Context, request *model.Request, response *model.Response, delta stats.Delta, source, topic string) {
	_ = s.responses.Save(ctx, response)
	_ = s.requests.Delete(ctx, request.ID)
	completedAt := clock.Now()
	s.mu.Lock()
	s.history = append(s.history, &model.HistoryEntry{Request: request, Response: response, CompletedAt: completedAt})
	if over := len(s.history) - s.historyLimit; s.historyLimit > 0 && over > 0 {
		s.history = append([]*model.HistoryEntry(nil), s.history[over:]...)
	}
	s.mu.Unlock()
	s.counters.Update(delta)
	s.metrics.ApprovalDecided(string(response.Decision), source, completedAt.Sub(request.CreatedAt))
	s.logger.Info("approval decided", "id", request.ID, "decision", response.Decision, "by", response.DecidedBy)
	s.emit(ctx, &model.Event{Topic: topic, Request: request, Response: response})
}

func (s *service) Pending(ctx context.Context, filters ...approval.PendingFilter) ([]*model.Request, error) {
	requests, err := s.requests.List(ctx, filters...)
	if err != nil {
		return nil, err
	}
	sort.Slice(requests, func(i, j int) bool {
		a, b := requests[i], requests[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	for i, request := range requests {
		requests[i] = copyRequest(request)
	}
	return requests, nil
}

func (s *service) Request(ctx context.Context, id string) *model.Request {
	ret, _ := s.requests.Load(ctx, id)
	return copyRequest(ret)
}

func (s *service) Response(ctx context.Context, id string) *model.Response {
	ret, _ := s.responses.Load(ctx, id)
	return copyResponse(ret)
}

// copyRequest returns a shallow copy so callers cannot edit stored records.
func copyRequest(request *model.Request) *model.Request {
	if request == nil {
		return nil
	}
	ret := *request
	return &ret
}

func copyResponse(response *model.Response) *model.Response {
	if response == nil {
		return nil
	}
	ret := *response
	return &ret
}

/* ---------------- history & statistics -------------------------------- */

func (s *service) History(limit int, agentID string) []*model.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]*model.HistoryEntry, 0, len(s.history))
	for _, entry := range s.history {
		if agentID != "" && entry.Request.AgentID != agentID {
			continue
		}
		ret = append(ret, entry)
	}
	if limit > 0 && len(ret) > limit {
		ret = ret[len(ret)-limit:]
	}
	for i, entry := range ret {
		ret[i] = &model.HistoryEntry{
			Request:     copyRequest(entry.Request),
			Response:    copyResponse(entry.Response),
			CompletedAt: entry.CompletedAt,
		}
	}
	return ret
}

func (s *service) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

func (s *service) Statistics() *model.Statistics {
	snapshot := s.counters.Snapshot()
	s.mu.RLock()
	activePolicies := len(s.policies)
	s.mu.RUnlock()
	return &model.Statistics{
		TotalRequests:    snapshot.Total,
		Approved:         snapshot.Approved,
		Rejected:         snapshot.Rejected,
		Modified:         snapshot.Modified,
		Timeout:          snapshot.Timeout,
		Pending:          s.requests.Len(),
		ActivePolicies:   activePolicies,
		ApprovalRate:     snapshot.ApprovalRate(),
		ModificationRate: snapshot.ModificationRate(),
		TimeoutRate:      snapshot.TimeoutRate(),
	}
}

func (s *service) ResetStatistics() {
	s.counters.Reset()
}

/* ---------------- events ---------------------------------------------- */

func (s *service) RegisterCallback(topic string, fn approval.Callback) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.callbacks[topic] = append(s.callbacks[topic], fn)
	s.mu.Unlock()
}

func (s *service) Queue() messaging.Queue[model.Event] { return s.queue }

func (s *service) emit(ctx context.Context, evt *model.Event) {
	if s.queue != nil {
		if err := s.queue.Publish(ctx, evt); err != nil {
			s.logger.Debug("approval event dropped", "topic", evt.Topic, "error", err)
		}
	}
	if s.publisher != nil {
		var agentID string
		if evt.Request != nil {
			agentID = evt.Request.AgentID
		}
		wrapped := event.NewEvent(&event.Context{Source: "approval", Topic: evt.Topic, AgentID: agentID}, *evt)
		if err := s.publisher.Publish(ctx, wrapped); err != nil {
			s.logger.Debug("approval event dropped", "topic", evt.Topic, "error", err)
		}
	}
	s.mu.RLock()
	callbacks := append([]approval.Callback(nil), s.callbacks[evt.Topic]...)
	s.mu.RUnlock()
	for _, fn := range callbacks {
		s.invoke(ctx, fn, evt)
	}
}

func (s *service) invoke(ctx context.Context, fn approval.Callback, evt *model.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("approval callback panic", "topic", evt.Topic, "panic", r)
		}
	}()
	fn(ctx, evt)
}

// Reset drops policies, requests, history, statistics and callbacks.
// Blocked RequestApproval callers return a system rejection.
func (s *service) Reset() {
	s.mu.Lock()
	s.policies = nil
	s.history = nil
	s.callbacks = make(map[string][]approval.Callback)
	s.mu.Unlock()
	s.requests.Clear()
	if clearer, ok := s.responses.(interface{ Clear() }); ok {
		clearer.Clear()
	}
	s.counters.Reset()
	s.slots.Reset()
	s.metrics.SetPendingApprovals(0)
	s.logger.Info("approval service reset")
}

var _ approval.Service = (*service)(nil)
