package approval

import (
	"context"
	"sync"
	"time"

	"github.com/viant/agentmesh/internal/clock"
	model "github.com/viant/agentmesh/model/approval"
)

// Approve records an approval by reviewer.
func Approve(ctx context.Context, svc Service, requestID, reviewer, feedback string) bool {
	return svc.SubmitResponse(ctx, &model.Response{
		RequestID: requestID,
		Decision:  model.DecisionApproved,
		Feedback:  feedback,
		DecidedBy: reviewer,
		DecidedAt: clock.Now(),
	})
}

// Reject records a rejection by reviewer.
func Reject(ctx context.Context, svc Service, requestID, reviewer, feedback string) bool {
	return svc.SubmitResponse(ctx, &model.Response{
		RequestID: requestID,
		Decision:  model.DecisionRejected,
		Feedback:  feedback,
		DecidedBy: reviewer,
		DecidedAt: clock.Now(),
	})
}

// Modify approves with reviewer changes to the action data.
func Modify(ctx context.Context, svc Service, requestID, reviewer string, modified map[string]interface{}, feedback string) bool {
	if modified == nil {
		modified = map[string]interface{}{}
	}
	return svc.SubmitResponse(ctx, &model.Response{
		RequestID:    requestID,
		Decision:     model.DecisionModified,
		ModifiedData: modified,
		Feedback:     feedback,
		DecidedBy:    reviewer,
		DecidedAt:    clock.Now(),
	})
}

// DecisionFunc decides what to do with a pending request.
// Return (true, "") to approve or (false, "...") to reject with feedback.
type DecisionFunc func(r *model.Request) (approved bool, feedback string)

// AutoDecider starts a goroutine that polls Pending and applies fn to every
// request as reviewer "auto". It returns stop(); cancelling ctx also stops it.
func AutoDecider(ctx context.Context, svc Service, fn DecisionFunc, interval time.Duration, filters ...PendingFilter) (stop func()) {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				requests, _ := svc.Pending(ctx, filters...)
				for _, r := range requests {
					if ok, feedback := fn(r); ok {
						Approve(ctx, svc, r.ID, "auto", feedback)
					} else {
						Reject(ctx, svc, r.ID, "auto", feedback)
					}
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

// AutoApprove approves every pending request.
func AutoApprove(ctx context.Context, svc Service, interval time.Duration, filters ...PendingFilter) func() {
	return AutoDecider(ctx, svc, func(*model.Request) (bool, string) { return true, "" }, interval, filters...)
}

// AutoReject rejects every pending request with feedback.
func AutoReject(ctx context.Context, svc Service, feedback string, interval time.Duration, filters ...PendingFilter) func() {
	return AutoDecider(ctx, svc, func(*model.Request) (bool, string) { return false, feedback }, interval, filters...)
}
