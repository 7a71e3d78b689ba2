package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/viant/agentmesh/model/approval"
)

// ErrInvalidPolicy is returned when a policy lacks a name or action kinds.
var ErrInvalidPolicy = errors.New("policy: invalid policy")

// Condition decides whether a policy triggers for the supplied action data.
// Returning an error is treated as a trigger.
type Condition func(data map[string]interface{}) (bool, error)

// Outcome is the result of evaluating a policy against an action.
type Outcome int

const (
	NotMatched Outcome = iota
	Matched
	// Failed means the condition could not be evaluated.
	Failed
)

// Triggers reports whether the outcome requires approval. Failed does, so a
// broken condition never silently bypasses review.
func (o Outcome) Triggers() bool {
	return o == Matched || o == Failed
}

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Failed:
		return "failed"
	}
	return "not-matched"
}

// Policy determines when human approval is required.
//
//   - ActionKinds restricts the policy to the listed kinds (must be non-empty).
//   - Condition narrows it further; nil means always.
//   - Priority, Timeout and AutoDecision shape the resulting request.
type Policy struct {
	Name         string
	Description  string
	ActionKinds  []approval.ActionKind
	Condition    Condition
	When         string // CEL source of Condition, if compiled from config
	Priority     approval.Priority
	Timeout      time.Duration // 0 means wait indefinitely
	AutoDecision approval.Decision
}

// Validate checks that the policy can be registered.
func (p *Policy) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil policy", ErrInvalidPolicy)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPolicy)
	}
	if len(p.ActionKinds) == 0 {
		return fmt.Errorf("%w: %s has no action kinds", ErrInvalidPolicy, p.Name)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("%w: %s has negative timeout", ErrInvalidPolicy, p.Name)
	}
	return nil
}

// Applies reports whether kind is one of the policy's action kinds.
func (p *Policy) Applies(kind approval.ActionKind) bool {
	for _, candidate := range p.ActionKinds {
		if candidate == kind {
			return true
		}
	}
	return false
}

// Evaluate matches the policy against an action. The returned error is set
// only for Failed.
func (p *Policy) Evaluate(kind approval.ActionKind, data map[string]interface{}) (outcome Outcome, err error) {
	if !p.Applies(kind) {
		return NotMatched, nil
	}
	if p.Condition == nil {
		return Matched, nil
	}
	defer func() {
		if r := recover(); r != nil {
			outcome, err = Failed, fmt.Errorf("policy %s: condition panic: %v", p.Name, r)
		}
	}()
	ok, err := p.Condition(data)
	if err != nil {
		return Failed, fmt.Errorf("policy %s: %w", p.Name, err)
	}
	if ok {
		return Matched, nil
	}
	return NotMatched, nil
}

// Triggers is a convenience wrapper over Evaluate.
func (p *Policy) Triggers(kind approval.ActionKind, data map[string]interface{}) bool {
	outcome, _ := p.Evaluate(kind, data)
	return outcome.Triggers()
}

// PriorityOrDefault returns Priority or normal.
func (p *Policy) PriorityOrDefault() approval.Priority {
	if p == nil || p.Priority == "" {
		return approval.PriorityNormal
	}
	return p.Priority
}

// AutoDecisionOrDefault returns the decision applied on timeout, rejected by default.
func (p *Policy) AutoDecisionOrDefault() approval.Decision {
	if p == nil || p.AutoDecision == "" {
		return approval.DecisionRejected
	}
	return p.AutoDecision
}

// Clone returns a shallow copy with its own kind slice.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	ret := *p
	ret.ActionKinds = append([]approval.ActionKind(nil), p.ActionKinds...)
	return &ret
}
