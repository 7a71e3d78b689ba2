package broker

import "github.com/viant/agentmesh/model/message"

// AgentStatistics summarises one registered agent.
type AgentStatistics struct {
	Type         string         `json:"type"`
	Status       message.Status `json:"status"`
	MessageCount int            `json:"messageCount"`
}

// Statistics is derived by scanning the registry and logs.
type Statistics struct {
	TotalAgents      int                         `json:"totalAgents"`
	ActiveAgents     int                         `json:"activeAgents"`
	TotalMessages    int                         `json:"totalMessages"`
	Conversations    int                         `json:"conversations"`
	PendingResponses int                         `json:"pendingResponses"`
	Agents           map[string]*AgentStatistics `json:"agents"`
}

// Statistics returns a snapshot of broker activity. TotalMessages counts
// distinct envelopes, each of which appears in both its sender and recipient log.
func (s *Service) Statistics() *Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := &Statistics{
		TotalAgents:      len(s.agents),
		Conversations:    len(s.conversations),
		PendingResponses: s.slots.Len(),
		Agents:           make(map[string]*AgentStatistics, len(s.agents)),
	}
	seen := make(map[string]bool)
	for _, log := range s.logs {
		for _, env := range log {
			seen[env.ID] = true
		}
	}
	ret.TotalMessages = len(seen)
	for id, a := range s.agents {
		if a.profile.Status == message.StatusActive {
			ret.ActiveAgents++
		}
		ret.Agents[id] = &AgentStatistics{
			Type:         a.profile.Type,
			Status:       a.profile.Status,
			MessageCount: len(s.logs[id]),
		}
	}
	return ret
}
