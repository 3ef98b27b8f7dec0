package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestNewJSONLogger_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, "warn")

	logger.Info("dropped")
	logger.Warn("kept", "collection", "users")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])
	assert.Equal(t, "users", lines[0]["collection"])
}

func TestTraceHandler_InjectsSpanContext(t *testing.T) {
	t.Parallel()

	traceID, err := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("b7ad6b7169203331")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, "info")
	logger.InfoContext(ctx, "with span")
	logger.InfoContext(context.Background(), "without span")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", lines[0]["trace_id"])
	assert.Equal(t, "b7ad6b7169203331", lines[0]["span_id"])
	_, hasTrace := lines[1]["trace_id"]
	assert.False(t, hasTrace)
}

func TestTraceHandler_WithAttrsKeepsInjection(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, "info").With("component", "orchestrator").WithGroup("g")

	_, ok := logger.Handler().(*TraceHandler)
	assert.True(t, ok)

	logger.Info("msg", "k", "v")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "orchestrator", lines[0]["component"])
	assert.Equal(t, map[string]any{"k": "v"}, lines[0]["g"])
}

type failingHandler struct {
	slog.Handler
	err error
}

func (f failingHandler) Handle(context.Context, slog.Record) error { return f.err }

func TestTeeHandler(t *testing.T) {
	t.Parallel()

	var debugBuf, warnBuf bytes.Buffer
	debug := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	warn := slog.NewJSONHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn})

	tee := NewTeeHandler(debug, nil, warn)
	logger := slog.New(tee).With("run_id", "run-1")

	assert.True(t, tee.Enabled(context.Background(), slog.LevelDebug))
	logger.Debug("debug only")
	logger.Warn("both")

	debugLines := decodeLines(t, &debugBuf)
	warnLines := decodeLines(t, &warnBuf)
	require.Len(t, debugLines, 2)
	require.Len(t, warnLines, 1)
	assert.Equal(t, "both", warnLines[0]["msg"])
	assert.Equal(t, "run-1", warnLines[0]["run_id"])
}

func TestTeeHandler_JoinsErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("exporter closed")
	var buf bytes.Buffer
	ok := slog.NewJSONHandler(&buf, nil)
	tee := NewTeeHandler(ok, failingHandler{Handler: ok, err: boom})

	err := tee.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "msg", 0))
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, buf.String(), "healthy handler still receives the record")
}
