package observability

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ExportConfig holds the settings shared by the tracer and meter providers.
type ExportConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (development, staging, production).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure disables TLS towards the collector.
	Insecure bool
}

func defaultExportConfig(serviceName string) ExportConfig {
	return ExportConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
	}
}

// resource describes the service to the collector. The service attributes
// are schemaless so they merge with whatever schema the SDK default uses.
func (c ExportConfig) resource() (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(c.ServiceName),
			semconv.ServiceVersion(c.ServiceVersion),
			attribute.String("environment", c.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}
	return res, nil
}

// TelemetryConfig configures both providers at once.
type TelemetryConfig struct {
	ExportConfig
	SampleRate float64
	Interval   time.Duration
}

// Telemetry holds the providers installed by InitTelemetry.
type Telemetry struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
}

// InitTelemetry installs the tracer and meter providers. If the meter fails
// the tracer is shut down again, so nothing is left half-installed.
func InitTelemetry(ctx context.Context, cfg *TelemetryConfig) (*Telemetry, error) {
	tp, err := InitTracer(ctx, &TracerConfig{ExportConfig: cfg.ExportConfig, SampleRate: cfg.SampleRate})
	if err != nil {
		return nil, err
	}
	mp, err := InitMeter(ctx, &MeterConfig{ExportConfig: cfg.ExportConfig, Interval: cfg.Interval})
	if err != nil {
		return nil, stderrors.Join(err, tp.Shutdown(ctx))
	}
	return &Telemetry{Tracer: tp, Meter: mp}, nil
}

// Shutdown flushes and stops the meter, then the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.Meter != nil {
		errs = append(errs, t.Meter.Shutdown(ctx))
	}
	if t.Tracer != nil {
		errs = append(errs, t.Tracer.Shutdown(ctx))
	}
	return stderrors.Join(errs...)
}
