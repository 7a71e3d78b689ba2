// Package approval implements the human-in-the-loop approval layer.
//
// Policies decide which agent actions need a human decision. RequestApproval
// blocks the calling agent until a reviewer submits a response, or the
// governing policy timeout elapses and its automatic decision applies.
// Client wraps a Service for a single agent; Approve, Reject and Modify are
// helpers for reviewer front-ends.
package approval
