package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	_defaultServiceName = "reschedule-engine"
	_defaultSampleRatio = 1.0
)

type Provider struct {
	serviceName string
	environment string
	insecure    bool
	sampleRatio float64

	tp *sdktrace.TracerProvider
}

// New installs a global OTLP/gRPC tracer provider. With an empty endpoint it
// returns a Provider whose Shutdown is a no-op and leaves the global no-op tracer.
func New(ctx context.Context, endpoint string, opts ...Option) (*Provider, error) {
	p := &Provider{
		serviceName: _defaultServiceName,
		sampleRatio: _defaultSampleRatio,
	}

	for _, opt := range opts {
		opt(p)
	}

	if endpoint == "" {
		return p, nil
	}

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if p.insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("tracing - New - otlptracegrpc.New: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(p.serviceName),
		semconv.DeploymentEnvironment(p.environment),
	)

	p.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.sampleRatio))),
	)
	otel.SetTracerProvider(p.tp)

	return p, nil
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}

	return p.tp.Shutdown(ctx)
}
