package messenger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/viant/agentmesh/model/message"
)

// Handler implements an agent's reaction to inbound messages.
type Handler interface {
	HandleRequest(ctx context.Context, env *message.Envelope) (*message.Envelope, error)
	HandleHandoff(ctx context.Context, env *message.Envelope) (*message.Envelope, error)
	HandleNotification(ctx context.Context, env *message.Envelope) error
}

// ResponseHandler is implemented by handlers that want RESPONSE messages
// nobody was waiting for.
type ResponseHandler interface {
	HandleResponse(ctx context.Context, env *message.Envelope) error
}

// Unimplemented provides default behaviour; embed it and override what the
// agent supports.
type Unimplemented struct{}

// HandleRequest rejects every task.
func (Unimplemented) HandleRequest(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
	return message.ReplyTo(env, false, nil, fmt.Sprintf("task %q not supported", env.Task())), nil
}

// HandleHandoff accepts the handoff and echoes its context back.
func (Unimplemented) HandleHandoff(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
	var handoffContext map[string]interface{}
	if env.Handoff != nil {
		handoffContext = env.Handoff.Context
	}
	return message.ReplyTo(env, true, map[string]interface{}{
		"acknowledged": true,
		"context":      handoffContext,
	}, ""), nil
}

// HandleNotification only logs the event.
func (Unimplemented) HandleNotification(ctx context.Context, env *message.Envelope) error {
	if env.Notification != nil {
		slog.Default().Info("notification received", "sender", env.Sender, "event", env.Notification.Event, "severity", env.Notification.Severity)
	}
	return nil
}
