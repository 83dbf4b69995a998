package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/alphadata/pkg/errors"
)

func TestInitTracingExportsToWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig("test")
	cfg.Writer = &buf

	tp, err := InitTracing(cfg)
	require.NoError(t, err)

	dt := NewDatasetTracer(nil, "registry")
	require.NoError(t, dt.Trace(context.Background(), "load", "close", func(context.Context) error { return nil }))

	require.NoError(t, Shutdown(context.Background(), tp))
	assert.Contains(t, buf.String(), "registry.load")
	assert.Contains(t, buf.String(), "alphadata")
}

func TestShutdownNil(t *testing.T) {
	assert.NoError(t, Shutdown(context.Background(), nil))
}

func TestDatasetTracerRecordsStatus(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	dt := NewDatasetTracer(tp.Tracer(TracerName), "loader")
	missing := errors.New(errors.ErrorTypeNotFound, "dataset 'x' not found")

	err := dt.Trace(context.Background(), "load", "x", func(context.Context) error { return missing })
	assert.Equal(t, missing, err)
	require.NoError(t, dt.Trace(context.Background(), "load", "y", func(context.Context) error { return nil }))

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "loader.load", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("alphadata.dataset", "x"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("error.type", "not_found"))

	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}
