// Package tracer provides a small tracing abstraction for the wallet services.
//
// Services depend on the Tracer interface instead of OpenTelemetry directly:
//   - NoopTracer: tests and tools that do not export traces
//   - OTelTracer: OpenTelemetry adapter backed by the global provider
package tracer

import "context"

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording err when it is non-nil.
	// End must be called exactly once, typically via defer.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
//
// Example:
//
//	ctx, span := t.Start(ctx, "credential.validate", tracer.String("credential_id", id))
//	defer func() { span.End(err) }()
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute { return Attribute{Key: key, Value: value} }

func Bool(key string, value bool) Attribute { return Attribute{Key: key, Value: value} }

func Int64(key string, value int64) Attribute { return Attribute{Key: key, Value: value} }

func Int(key string, value int) Attribute { return Attribute{Key: key, Value: value} }
