// Package agentmesh provides an in-process message broker for cooperating
// agents together with a human-in-the-loop approval gate.
//
// Agents register with the broker through a messenger and exchange typed
// envelopes (requests, responses, notifications, handoffs, queries). Actions
// covered by an approval policy block until a reviewer decides or the policy
// timeout applies its automatic decision.
//
//	srv, _ := agentmesh.New(agentmesh.WithConfig(cfg))
//	planner := srv.NewMessenger("planner", "planning", nil)
//	reply := planner.SendRequest(ctx, "researcher", "search", params)
//
//	gate := srv.NewApprovalClient("planner")
//	result := gate.CheckAPICallApproval(ctx, "payments", params, true)
//
// Reviewers list pending requests with srv.Approvals().Pending and decide
// with approval.Approve, approval.Reject or approval.Modify.
package agentmesh
