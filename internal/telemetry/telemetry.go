// Package telemetry wires OpenTelemetry tracing/metrics and a
// Prometheus registry for the cascade engine: spans and attributes are
// recorded at call sites against a standing SDK setup, suited to a
// long-lived service/CLI process rather than a one-shot script.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cascadegraph/cascade"

// Providers holds the process-wide tracer/meter providers and a
// separate Prometheus registry. OTel metrics are not bridged into the
// registry, and this package serves no /metrics endpoint.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Registry       *prometheus.Registry
}

// Init builds the tracer and meter providers for serviceName and
// installs them as the global providers. Callers should defer
// Shutdown(ctx) to flush any registered span/metric exporters.
func Init(serviceName string) (*Providers, error) {
	res, err := sdkresource.New(context.Background(),
		sdkresource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return &Providers{TracerProvider: tp, MeterProvider: mp, Registry: reg}, nil
}

// Shutdown flushes and stops the tracer and meter providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.MeterProvider.Shutdown(ctx)
}

// Tracer returns the cascade engine's named tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
