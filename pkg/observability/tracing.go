package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// EnvOTLPEndpoint enables span export when set.
const EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"

// SetupTracing installs a global OTLP/HTTP tracer provider when EnvOTLPEndpoint is set.
// The returned function flushes and stops it; it is a no-op when tracing is disabled.
func SetupTracing(ctx context.Context, serviceName, version string) (func(context.Context) error, error) {
	if os.Getenv(EnvOTLPEndpoint) == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
