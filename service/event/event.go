package event

import "time"

// Context identifies where an event originated.
type Context struct {
	Source         string `json:"source"`
	Topic          string `json:"topic"`
	AgentID        string `json:"agentID,omitempty"`
	ConversationID string `json:"conversationID,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
