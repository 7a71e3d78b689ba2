package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/viant/agentmesh/model/approval"
	"github.com/viant/toolbox"
)

// Preset names recognised by FromConfig.
const (
	PresetAlwaysApproveResponses = "always_approve_responses"
	PresetApproveLowConfidence   = "approve_low_confidence"
	PresetApproveAPICalls        = "approve_api_calls"
	PresetApproveSensitiveData   = "approve_sensitive_data"
	PresetApproveMultiAgent      = "approve_multi_agent"
	PresetNoApproval             = "no_approval"
)

// LowConfidenceThreshold is the confidence below which responses are reviewed.
const LowConfidenceThreshold = 0.7

var sensitiveKeywords = []string{"personal", "private", "confidential", "password", "key"}

// AlwaysApproveResponses reviews every agent response, approving on timeout.
func AlwaysApproveResponses() *Policy {
	return &Policy{
		Name:         PresetAlwaysApproveResponses,
		Description:  "Require human approval for all agent responses",
		ActionKinds:  []approval.ActionKind{approval.ActionAgentResponse},
		Priority:     approval.PriorityNormal,
		Timeout:      5 * time.Minute,
		AutoDecision: approval.DecisionApproved,
	}
}

// ApproveLowConfidence reviews responses whose confidence is below the threshold.
// A missing confidence counts as fully confident.
func ApproveLowConfidence() *Policy {
	return &Policy{
		Name:        PresetApproveLowConfidence,
		Description: "Require approval when agent confidence is < 70%",
		ActionKinds: []approval.ActionKind{approval.ActionAgentResponse},
		Condition: func(data map[string]interface{}) (bool, error) {
			raw, ok := data["confidence"]
			if !ok {
				return false, nil
			}
			confidence, err := toolbox.ToFloat(raw)
			if err != nil {
				return false, err
			}
			return confidence < LowConfidenceThreshold, nil
		},
		Priority:     approval.PriorityHigh,
		Timeout:      3 * time.Minute,
		AutoDecision: approval.DecisionRejected,
	}
}

// ApproveAPICalls reviews every external call.
func ApproveAPICalls() *Policy {
	return &Policy{
		Name:         PresetApproveAPICalls,
		Description:  "Require approval for all external API calls",
		ActionKinds:  []approval.ActionKind{approval.ActionAPICall},
		Priority:     approval.PriorityHigh,
		Timeout:      time.Minute,
		AutoDecision: approval.DecisionRejected,
	}
}

// ApproveSensitiveData reviews data retrievals whose query mentions a sensitive keyword.
func ApproveSensitiveData() *Policy {
	return &Policy{
		Name:        PresetApproveSensitiveData,
		Description: "Require approval for sensitive data access",
		ActionKinds: []approval.ActionKind{approval.ActionDataRetrieval},
		Condition: func(data map[string]interface{}) (bool, error) {
			query := strings.ToLower(fmt.Sprint(data["query"]))
			for _, keyword := range sensitiveKeywords {
				if strings.Contains(query, keyword) {
					return true, nil
				}
			}
			return false, nil
		},
		Priority:     approval.PriorityCritical,
		Timeout:      2 * time.Minute,
		AutoDecision: approval.DecisionRejected,
	}
}

// ApproveMultiAgent reviews collaboration between agents, approving on timeout.
func ApproveMultiAgent() *Policy {
	return &Policy{
		Name:         PresetApproveMultiAgent,
		Description:  "Require approval when multiple agents collaborate",
		ActionKinds:  []approval.ActionKind{approval.ActionAgentCollaboration},
		Priority:     approval.PriorityNormal,
		Timeout:      3 * time.Minute,
		AutoDecision: approval.DecisionApproved,
	}
}

// NoApproval covers every kind but never triggers (autonomous mode).
func NoApproval() *Policy {
	return &Policy{
		Name:        PresetNoApproval,
		Description: "No approval required (autonomous mode)",
		ActionKinds: approval.ActionKinds(),
		Condition:   func(map[string]interface{}) (bool, error) { return false, nil },
		Priority:    approval.PriorityLow,
	}
}

var presets = map[string]func() *Policy{
	PresetAlwaysApproveResponses: AlwaysApproveResponses,
	PresetApproveLowConfidence:   ApproveLowConfidence,
	PresetApproveAPICalls:        ApproveAPICalls,
	PresetApproveSensitiveData:   ApproveSensitiveData,
	PresetApproveMultiAgent:      ApproveMultiAgent,
	PresetNoApproval:             NoApproval,
}

// Preset returns a fresh copy of the named preset.
func Preset(name string) (*Policy, bool) {
	fn, ok := presets[name]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// PresetNames lists the built-in presets in a stable order.
func PresetNames() []string {
	return []string{
		PresetAlwaysApproveResponses,
		PresetApproveLowConfidence,
		PresetApproveAPICalls,
		PresetApproveSensitiveData,
		PresetApproveMultiAgent,
		PresetNoApproval,
	}
}
