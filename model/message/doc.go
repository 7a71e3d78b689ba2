// Package message defines the envelope exchanged between workers through the
// broker, its typed payloads and the worker profile used for discovery.
package message
