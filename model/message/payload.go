package message

// Severity grades a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Request asks the recipient to perform Task.
type Request struct {
	Task       string                 `json:"task"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Response reports the outcome of a request or handoff.
type Response struct {
	Success  bool                   `json:"success"`
	Data     interface{}            `json:"data,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Notification informs the recipient of an event; no reply is expected.
type Notification struct {
	Event    string                 `json:"event"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Severity Severity               `json:"severity"`
}

// Handoff transfers an in-progress task, including the original user input.
type Handoff struct {
	Task        string                 `json:"task"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Reason      string                 `json:"reason"`
	UserMessage string                 `json:"userMessage"`
}

// Query asks whether the recipient supports a capability.
type Query struct {
	Capability string `json:"capability"`
}
