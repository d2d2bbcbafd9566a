package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/funcscan/pkg/observability"
)

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "test-svc", observability.ModeCLI))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "test message")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "test-svc", record["service"])
	assert.Equal(t, "cli", record["mode"])
}

func TestTracingHandler_NoTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "funcscan", observability.ModeMCP))

	logger.WithGroup("scan").Info("no trace", "file", "a.c")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.NotContains(t, record, "trace_id")
	assert.Equal(t, "funcscan", record["service"])
	assert.Equal(t, "mcp", record["mode"])

	group, ok := record["scan"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a.c", group["file"])
}

func TestTracingHandler_FilePath(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "funcscan", observability.ModeCLI))

	ctx := observability.ContextWithFile(context.Background(), "src/a.c")

	path, ok := observability.FileFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "src/a.c", path)

	logger.WarnContext(ctx, "cache read failed")
	logger.WarnContext(context.Background(), "no file")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var withFile, without map[string]any

	require.NoError(t, json.Unmarshal(lines[0], &withFile))
	require.NoError(t, json.Unmarshal(lines[1], &without))

	assert.Equal(t, "src/a.c", withFile["file.path"])
	assert.NotContains(t, without, "file.path")
}

func TestBuildLogger_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogLevel = slog.LevelWarn
	cfg.LogWriter = &buf

	logger := observability.BuildLogger(cfg)
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, observability.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, observability.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, observability.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, observability.ParseLevel("whatever"))
}
