package tracing

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestConfig returns a Config backed by an in-memory span recorder.
func newTestConfig(t *testing.T) (*Config, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })
	return &Config{TracerProvider: tp}, rec
}

func hasAttr(attrs []attribute.KeyValue, want attribute.KeyValue) bool {
	for _, a := range attrs {
		if a.Key == want.Key && a.Value == want.Value {
			return true
		}
	}
	return false
}

func TestStartOp_CreatesSpan(t *testing.T) {
	cfg, rec := newTestConfig(t)

	_, done := cfg.StartOp(t.Context(), "cache.get", "cache:user:42")
	done(true, nil)

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "cache.get" {
		t.Fatalf("expected span name %q, got %q", "cache.get", span.Name())
	}
	attrs := span.Attributes()
	if !hasAttr(attrs, attribute.String("cache.key", "cache:user:42")) {
		t.Fatalf("cache.key attribute missing: %v", attrs)
	}
	if !hasAttr(attrs, attribute.Bool("cache.hit", true)) {
		t.Fatalf("cache.hit attribute missing: %v", attrs)
	}
	if span.Status().Code != codes.Ok {
		t.Fatalf("expected Ok status, got %v", span.Status().Code)
	}
}

func TestStartOp_RecordsError(t *testing.T) {
	cfg, rec := newTestConfig(t)

	_, done := cfg.StartOp(t.Context(), "cache.set", "cache:user:42")
	done(false, errors.New("backend down"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Status().Code != codes.Error {
		t.Fatalf("expected Error status, got %v", span.Status().Code)
	}
	if len(span.Events()) == 0 {
		t.Fatal("expected a recorded error event")
	}
}

func TestStartOp_NilConfigIsNoop(t *testing.T) {
	var cfg *Config

	ctx, done := cfg.StartOp(t.Context(), "cache.get", "k")
	if ctx == nil {
		t.Fatal("context must pass through")
	}
	done(false, nil) // must not panic
}
