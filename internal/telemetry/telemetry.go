// Package telemetry wires OpenTelemetry tracing and metrics for the
// inventory process.
//
// When no OTLP endpoint is configured the global no-op providers stay in
// place and nothing is exported.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// metricInterval is how often the periodic reader pushes metrics.
const metricInterval = 15 * time.Second

// ShutdownFunc flushes and stops the installed providers.
type ShutdownFunc func(context.Context) error

// Setup installs global tracer and meter providers exporting over OTLP/HTTP.
//
// endpoint is either a full URL such as "http://collector:4318", whose
// scheme decides between plain HTTP and TLS, or a bare "host:port", which
// is always dialed over TLS. An empty endpoint installs nothing.
func Setup(ctx context.Context, endpoint, serviceName string) (ShutdownFunc, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := NewResource(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	traceExporter, err := newTraceExporter(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("create otlp trace exporter: %w", err)
	}
	metricExporter, err := newMetricExporter(ctx, endpoint)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("create otlp metric exporter: %w", err),
			traceExporter.Shutdown(ctx),
		)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(metricInterval),
		)),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newTraceExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	if base, ok := baseURL(endpoint); ok {
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(base+"/v1/traces"))
	}
	return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint))
}

func newMetricExporter(ctx context.Context, endpoint string) (*otlpmetrichttp.Exporter, error) {
	if base, ok := baseURL(endpoint); ok {
		return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(base+"/v1/metrics"))
	}
	return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint))
}

// baseURL reports whether endpoint carries a scheme and returns it without a
// trailing slash, ready for a signal path to be appended.
func baseURL(endpoint string) (string, bool) {
	if !strings.Contains(endpoint, "://") {
		return "", false
	}
	return strings.TrimSuffix(endpoint, "/"), true
}

// NewResource describes this process: service name plus a per-run instance ID.
func NewResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.instance.id", uuid.NewString()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create telemetry resource: %w", err)
	}
	return res, nil
}
