package telemetry

import (
	"civicportal/internal/config"
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Setup installs a global OTLP tracer provider when an endpoint is configured.
// The returned function flushes and stops it; it is a no-op otherwise.
func Setup(ctx context.Context, cfg config.Config) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if cfg.OTELEndpoint == "" {
		return noop
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTELEndpoint)}
	if cfg.OTELInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		logrus.WithError(err).Warn("otel exporter error, tracing disabled")
		return noop
	}

	serviceName := cfg.OTELServiceName
	if serviceName == "" {
		serviceName = "civicportal"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		logrus.WithError(err).Warn("otel resource error")
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	logrus.WithFields(logrus.Fields{
		"endpoint": cfg.OTELEndpoint,
		"service":  serviceName,
	}).Info("tracing enabled")
	return provider.Shutdown
}
