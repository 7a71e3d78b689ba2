// Package approval defines the value types exchanged with the human approval
// gate: pending requests, decisions, audit history and statistics.
package approval
