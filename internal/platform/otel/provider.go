// Package otel wires opt-in OpenTelemetry tracing for roomsync commands.
package otel

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationPrefix = "github.com/louisbranch/roomsync/"

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when ROOMSYNC_OTEL_ENDPOINT is empty or
// ROOMSYNC_OTEL_ENABLED is "false", Setup returns a no-op shutdown
// function and no global provider is registered.
//
// ROOMSYNC_OTEL_SAMPLE_RATIO, when set, selects a parent-based ratio sampler
// instead of sampling every trace.
//
// The returned shutdown function flushes pending spans and should be deferred
// by the caller.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv("ROOMSYNC_OTEL_ENABLED"), "false") {
		return noop, nil
	}

	endpoint := os.Getenv("ROOMSYNC_OTEL_ENDPOINT")
	if endpoint == "" {
		return noop, nil
	}

	sampler, err := samplerFromEnv(os.Getenv("ROOMSYNC_OTEL_SAMPLE_RATIO"))
	if err != nil {
		return noop, err
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer returns the tracer for a roomsync component, e.g. "roomapi".
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationPrefix + component)
}

// Propagator returns the process text map propagator.
func Propagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

func samplerFromEnv(raw string) (sdktrace.Sampler, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sdktrace.AlwaysSample(), nil
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("invalid ROOMSYNC_OTEL_SAMPLE_RATIO %q", raw)
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
}
