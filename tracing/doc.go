// Package tracing wraps OpenTelemetry so that the broker and approval
// services can open spans without importing the SDK directly. Until Init is
// called every span is a no-op.
package tracing
