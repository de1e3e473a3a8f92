// Package traces provides OpenTelemetry distributed tracing for the ScamCheck service.
package traces

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/scamcheck/scamcheck"

// Init wires the global tracer provider to an OTLP gRPC collector.
// An empty endpoint leaves the default no-op provider in place, so
// StartSpan callers need no enabled/disabled branching. The returned
// function flushes and stops the provider.
func Init(ctx context.Context, otlpEndpoint string, logger *slog.Logger) (func(context.Context) error, error) {
	if otlpEndpoint == "" {
		logger.Info("tracing disabled", "reason", "OTEL_EXPORTER_OTLP_ENDPOINT not set")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("scamcheck"),
		semconv.ServiceVersion("0.1.0"),
	))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Info("tracing enabled", "endpoint", otlpEndpoint)
	return provider.Shutdown, nil
}

// StartSpan opens a span on the service tracer with optional attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// Attribute helpers shared by the handlers so span keys stay consistent.

func Network(code string) attribute.KeyValue {
	return attribute.String("check.network", code)
}

func Platform(platform string) attribute.KeyValue {
	return attribute.String("check.platform", platform)
}

func Score(score int) attribute.KeyValue {
	return attribute.Int("check.score", score)
}

func Identity(id string) attribute.KeyValue {
	return attribute.String("account.identity", id)
}

func PaymentID(id string) attribute.KeyValue {
	return attribute.String("payment.id", id)
}
