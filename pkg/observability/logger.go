package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrMode    = "mode"
	attrFile    = "file.path"
)

type fileKey struct{}

// ContextWithFile returns a context whose log records carry path as
// file.path, matching the attribute on the file's span.
func ContextWithFile(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, fileKey{}, path)
}

// FileFromContext returns the path set by [ContextWithFile].
func FileFromContext(ctx context.Context) (string, bool) {
	path, ok := ctx.Value(fileKey{}).(string)

	return path, ok && path != ""
}

// TracingHandler is an [slog.Handler] that injects OpenTelemetry trace context
// (trace_id, span_id), the file being scanned and service metadata into every
// log record.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps an [slog.Handler]. Service attributes are attached
// to the inner handler so they stay at the top level under WithGroup.
func NewTracingHandler(inner slog.Handler, service string, appMode AppMode) *TracingHandler {
	return &TracingHandler{
		inner: inner.WithAttrs([]slog.Attr{
			slog.String(attrService, service),
			slog.String(attrMode, string(appMode)),
		}),
	}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds trace context and file attributes from ctx, then delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if path, ok := FileFromContext(ctx); ok {
		record.AddAttrs(slog.String(attrFile, path))
	}

	err := th.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs returns a new TracingHandler with additional attributes on the inner handler.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup returns a new TracingHandler with a group prefix on the inner handler.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}
