// Package observability wires OpenTelemetry tracing for alphadata
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/alphadata/pkg/errors"
)

// TracerName is the instrumentation scope used by alphadata components.
const TracerName = "github.com/ajitpratap0/alphadata"

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	// Writer receives exported spans, os.Stdout when nil
	Writer       io.Writer
	BatchTimeout time.Duration
}

// DefaultTracingConfig returns the CLI tracing defaults
func DefaultTracingConfig(version string) TracingConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	return TracingConfig{
		ServiceName:    "alphadata",
		ServiceVersion: version,
		Environment:    env,
		SamplingRate:   1.0,
		BatchTimeout:   5 * time.Second,
	}
}

// InitTracing installs a tracer provider exporting to stdout and makes it the
// global provider. Callers shut it down with Shutdown.
func InitTracing(cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create resource")
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create stdout exporter")
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Second
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Shutdown flushes pending spans and stops the provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer: %w", err)
	}
	return nil
}

// DatasetTracer wraps dataset operations in spans.
type DatasetTracer struct {
	component string
	tracer    trace.Tracer
}

// NewDatasetTracer creates a tracer for component. A nil tracer uses the
// global provider, which is a no-op until InitTracing runs.
func NewDatasetTracer(tracer trace.Tracer, component string) *DatasetTracer {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &DatasetTracer{component: component, tracer: tracer}
}

// Trace runs fn inside a span named <component>.<operation> tagged with the
// dataset. A returned error marks the span failed.
func (dt *DatasetTracer) Trace(ctx context.Context, operation, dataset string, fn func(context.Context) error) error {
	ctx, span := dt.tracer.Start(ctx, dt.component+"."+operation,
		trace.WithAttributes(
			attribute.String("alphadata.component", dt.component),
			attribute.String("alphadata.dataset", dataset),
		))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.type", string(errors.TypeOf(err))))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}
