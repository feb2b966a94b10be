package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "food-diary"

// GetTracer returns the tracer for creating spans from the global provider.
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Config controls span sampling.
type Config struct {
	// SampleRatio is the fraction of root traces recorded, in [0,1].
	SampleRatio float64
}

// NewProvider installs a parent-based ratio sampler as the global
// TracerProvider together with the W3C trace context propagator. Spans are
// recorded in-process; exporters attach via opts.
//
// The returned function flushes and stops the provider.
func NewProvider(cfg Config, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, func(context.Context) error) {
	ratio := cfg.SampleRatio
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	all := append([]sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}, opts...)
	tp := sdktrace.NewTracerProvider(all...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, tp.Shutdown
}
