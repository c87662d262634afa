package metrics

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer abstracts span creation so callers do not depend on a tracing
// backend directly.
type Tracer interface {
	// StartSpan starts a span and returns a context carrying it plus a
	// function that ends the span. Pass the error (or nil) to the ender.
	StartSpan(ctx context.Context, name string, attrs map[string]interface{}) (context.Context, SpanEnder)
}

// SpanEnder ends a span. Call with nil for success or an error to mark the
// span failed.
type SpanEnder func(err error)

// Span names for engine operations.
const (
	SpanHandshakeInitiate = "pqwire.handshake.initiate"
	SpanHandshakeRespond  = "pqwire.handshake.respond"
	SpanHandshakeConfirm  = "pqwire.handshake.confirm"
	SpanKeyInstall        = "pqwire.broker.install"
)

// NoOpTracer discards all spans.
type NoOpTracer struct{}

// StartSpan returns the context unchanged and a no-op ender.
func (NoOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]interface{}) (context.Context, SpanEnder) {
	return ctx, func(error) {}
}

// OTelTracer adapts OpenTelemetry tracing to the Tracer interface.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer creates a tracer using the global OpenTelemetry provider.
// Without a configured provider the spans are no-ops, so it is always safe
// to install.
func NewOTelTracer(serviceName string) *OTelTracer {
	if serviceName == "" {
		serviceName = "pqwire"
	}
	return &OTelTracer{tracer: otel.Tracer(serviceName)}
}

// StartSpan starts an OpenTelemetry span.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, attrs map[string]interface{}) (context.Context, SpanEnder) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(otelAttributes(attrs)...))
	}

	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func otelAttributes(attrs map[string]interface{}) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case int64:
			out = append(out, attribute.Int64(k, val))
		case uint64:
			out = append(out, attribute.Int64(k, int64(val)))
		case float64:
			out = append(out, attribute.Float64(k, val))
		default:
			out = append(out, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return out
}

// --- Global Tracer ---

var (
	globalTracer   Tracer = NoOpTracer{}
	globalTracerMu sync.RWMutex
)

// SetTracer sets the global tracer.
func SetTracer(t Tracer) {
	globalTracerMu.Lock()
	defer globalTracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer.
func GetTracer() Tracer {
	globalTracerMu.RLock()
	defer globalTracerMu.RUnlock()
	return globalTracer
}

// StartSpan starts a span using the global tracer.
func StartSpan(ctx context.Context, name string, attrs map[string]interface{}) (context.Context, SpanEnder) {
	return GetTracer().StartSpan(ctx, name, attrs)
}
