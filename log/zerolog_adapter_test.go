package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	buf.Reset()
	return line
}

func TestWriterLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, zerolog.DebugLevel).With(Fields{"namespace": "tests"})

	logger.Warn(context.Background(), "dropped date filter", Fields{"before": "soon"})
	line := decodeLine(t, &buf)
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "tests", line["namespace"])
	assert.Equal(t, "soon", line["before"])
	assert.Equal(t, "dropped date filter", line["message"])

	logger.Error(context.Background(), "insert failed", errors.New("boom"))
	line = decodeLine(t, &buf)
	assert.Equal(t, "boom", line["error"])
}

func TestWriterLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, zerolog.InfoLevel)

	logger.Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestWriterLogger_TraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, zerolog.InfoLevel)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger.Info(ctx, "traced")
	line := decodeLine(t, &buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), line["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), line["span_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("error", true))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error", false))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud", false))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("", false))
}
