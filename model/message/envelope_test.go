package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	env := NewRequest("a", "b", "search", map[string]interface{}{"q": "spa"}, nil)
	assert.Equal(t, KindRequest, env.Kind)
	assert.Equal(t, PriorityNormal, env.Priority)
	assert.NotEmpty(t, env.ID)
	assert.NotEmpty(t, env.ConversationID)
	require.NotNil(t, env.Request)
	assert.Equal(t, "search", env.Task())
	assert.NotNil(t, env.Request.Context)

	grouped := NewRequest("a", "b", "search", nil, nil, WithConversation("c1"), WithPriority(PriorityUrgent))
	assert.Equal(t, "c1", grouped.ConversationID)
	assert.Equal(t, PriorityUrgent, grouped.Priority)
}

func TestReplyTo(t *testing.T) {
	req := NewRequest("a", "b", "search", nil, nil)
	resp := ReplyTo(req, true, "ok", "")
	assert.Equal(t, KindResponse, resp.Kind)
	assert.Equal(t, "b", resp.Sender)
	assert.Equal(t, "a", resp.Recipient)
	assert.Equal(t, req.ID, resp.ReplyTo)
	assert.Equal(t, req.ConversationID, resp.ConversationID)
	assert.True(t, resp.Succeeded())
}

func TestNewNotification(t *testing.T) {
	testCases := []struct {
		name     string
		severity Severity
		expect   Priority
	}{
		{name: "default", severity: "", expect: PriorityNormal},
		{name: "warning", severity: SeverityWarning, expect: PriorityNormal},
		{name: "error", severity: SeverityError, expect: PriorityHigh},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := NewNotification("a", "b", "indexed", nil, tc.severity)
			assert.Equal(t, tc.expect, env.Priority)
			assert.NotEmpty(t, env.Notification.Severity)
		})
	}
}

func TestNewHandoff(t *testing.T) {
	env := NewHandoff("a", "b", "compare", map[string]interface{}{"k": 1}, "specialist", "which is better?", "c1")
	assert.Equal(t, PriorityHigh, env.Priority)
	assert.Equal(t, "c1", env.ConversationID)
	assert.Equal(t, "compare", env.Task())
	assert.Equal(t, "which is better?", env.Handoff.UserMessage)
}

func TestEnvelope_Clone(t *testing.T) {
	env := NewRequest("a", "b", "search", map[string]interface{}{"q": "spa"}, nil, WithConversation("c1"))
	clone := env.Clone("c")
	assert.NotEqual(t, env.ID, clone.ID)
	assert.Equal(t, "c", clone.Recipient)
	assert.Equal(t, "b", env.Recipient)
	assert.Equal(t, env.ConversationID, clone.ConversationID)

	clone.Request.Parameters["q"] = "changed"
	assert.Equal(t, "spa", env.Request.Parameters["q"])
}

func TestProfile_CanHandle(t *testing.T) {
	profile := &Profile{ID: "p", Capabilities: []Capability{{Name: "search"}, {Name: "compare"}}}
	assert.True(t, profile.CanHandle("compare"))
	assert.False(t, profile.CanHandle("book"))
	assert.Nil(t, (*Profile)(nil).Capability("search"))

	clone := profile.Clone()
	clone.Capabilities[0].Name = "other"
	assert.Equal(t, "search", profile.Capabilities[0].Name)
}

func TestKind_Correlated(t *testing.T) {
	assert.True(t, KindRequest.Correlated())
	assert.True(t, KindHandoff.Correlated())
	assert.False(t, KindResponse.Correlated())
	assert.False(t, KindNotification.Correlated())
	assert.False(t, KindQuery.Correlated())
}
