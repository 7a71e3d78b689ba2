// Package policy provides the declarative rules that decide whether a domain
// action must be approved by a human before it proceeds, and with which
// priority, timeout and fallback decision.
package policy
