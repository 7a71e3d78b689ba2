package policy

import (
	"fmt"
	"time"

	"github.com/viant/agentmesh/model/approval"
)

// Config represents the declarative, serialisable part of a Policy. Either
// Preset selects a built-in policy (other non-zero fields override it), or
// the fields describe the policy from scratch with When as a CEL condition.
type Config struct {
	Preset       string        `json:"preset,omitempty" yaml:"preset,omitempty"`
	Name         string        `json:"name,omitempty" yaml:"name,omitempty"`
	Description  string        `json:"description,omitempty" yaml:"description,omitempty"`
	ActionKinds  []string      `json:"actionKinds,omitempty" yaml:"actionKinds,omitempty"`
	When         string        `json:"when,omitempty" yaml:"when,omitempty"`
	Priority     string        `json:"priority,omitempty" yaml:"priority,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	AutoDecision string        `json:"autoDecision,omitempty" yaml:"autoDecision,omitempty"`
}

// ToConfig converts a runtime Policy into a persistable Config. Go conditions
// cannot be persisted; only a CEL source in When survives the round trip.
func ToConfig(p *Policy) *Config {
	if p == nil {
		return nil
	}
	ret := &Config{
		Name:         p.Name,
		Description:  p.Description,
		When:         p.When,
		Priority:     string(p.Priority),
		Timeout:      p.Timeout,
		AutoDecision: string(p.AutoDecision),
	}
	for _, kind := range p.ActionKinds {
		ret.ActionKinds = append(ret.ActionKinds, string(kind))
	}
	return ret
}

// FromConfig builds a runtime Policy, compiling When into a Condition.
func FromConfig(c *Config) (*Policy, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidPolicy)
	}
	ret := &Policy{}
	if c.Preset != "" {
		preset, ok := Preset(c.Preset)
		if !ok {
			return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidPolicy, c.Preset)
		}
		ret = preset
	}
	if c.Name != "" {
		ret.Name = c.Name
	}
	if c.Description != "" {
		ret.Description = c.Description
	}
	if len(c.ActionKinds) > 0 {
		ret.ActionKinds = ret.ActionKinds[:0:0]
		for _, kind := range c.ActionKinds {
			if !knownKind(approval.ActionKind(kind)) {
				return nil, fmt.Errorf("%w: %s: unknown action kind %q", ErrInvalidPolicy, ret.Name, kind)
			}
			ret.ActionKinds = append(ret.ActionKinds, approval.ActionKind(kind))
		}
	}
	if c.When != "" {
		condition, err := CompileCondition(c.When)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPolicy, ret.Name, err)
		}
		ret.Condition = condition
		ret.When = c.When
	}
	if c.Priority != "" {
		priority := approval.Priority(c.Priority)
		if priority.Rank() > approval.PriorityLow.Rank() {
			return nil, fmt.Errorf("%w: %s: unknown priority %q", ErrInvalidPolicy, ret.Name, c.Priority)
		}
		ret.Priority = priority
	}
	if c.Timeout != 0 {
		ret.Timeout = c.Timeout
	}
	if c.AutoDecision != "" {
		decision := approval.Decision(c.AutoDecision)
		switch decision {
		case approval.DecisionApproved, approval.DecisionRejected, approval.DecisionEscalated, approval.DecisionNeedsInfo:
		default:
			return nil, fmt.Errorf("%w: %s: unsupported auto decision %q", ErrInvalidPolicy, ret.Name, c.AutoDecision)
		}
		ret.AutoDecision = decision
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

func knownKind(kind approval.ActionKind) bool {
	for _, candidate := range approval.ActionKinds() {
		if candidate == kind {
			return true
		}
	}
	return false
}
