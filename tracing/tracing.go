// Package tracing provides OpenTelemetry spans around cache operations.
// It is entirely optional — tracing is only active when a [Config] is
// wired into the manager; a nil Config makes every call a no-op.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the OpenTelemetry configuration used for cache spans.
type Config struct {
	// TracerProvider supplies the Tracer used to create spans. When nil the
	// global otel.GetTracerProvider() is used.
	TracerProvider trace.TracerProvider
}

// tracer returns a configured [trace.Tracer].
func (c *Config) tracer() trace.Tracer {
	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer("github.com/Keksclan/goRawrCache/tracing")
}

// Done finishes a span started with [Config.StartOp]. The hit flag records
// whether the operation was served from cache; err marks the span failed.
type Done func(hit bool, err error)

// StartOp starts a span named after the cache operation ("cache.get",
// "cache.set", …) with the key attached as an attribute. On a nil Config
// the returned Done is a no-op, so callers never branch on whether tracing
// is enabled:
//
//	ctx, done := cfg.StartOp(ctx, "cache.get", key)
//	...
//	done(hit, err)
func (c *Config) StartOp(ctx context.Context, op, key string) (context.Context, Done) {
	if c == nil {
		return ctx, func(bool, error) {}
	}
	ctx, span := c.tracer().Start(ctx, op, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("cache.operation", op),
		attribute.String("cache.key", key),
	)
	return ctx, func(hit bool, err error) {
		span.SetAttributes(attribute.Bool("cache.hit", hit))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
