// Package broker routes envelopes between registered agents.
//
// The broker owns the agent registry, per-agent and per-conversation message
// logs and the table of requests awaiting a correlated reply. A send either
// invokes the recipient handler synchronously, or, for a waiting request or handoff,
// runs the handler in its own goroutine and blocks until a reply resolves the
// request, the handler fails, or the timeout elapses.
package broker
