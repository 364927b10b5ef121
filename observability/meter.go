package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/dikit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ExportConfig
	// Interval is the export interval; zero uses the SDK default.
	Interval time.Duration
}

// DefaultMeterConfig returns development defaults with a 15s export interval.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{ExportConfig: defaultExportConfig(serviceName), Interval: 15 * time.Second}
}

// InitMeter installs a periodic OTLP/HTTP meter provider as the global
// provider. The caller shuts the provider down on exit.
func InitMeter(ctx context.Context, cfg *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := cfg.resource()
	if err != nil {
		return nil, err
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		logger.FieldService, cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Resolution outcomes recorded by RegistryMetrics.
const (
	OutcomeHit           = "hit"
	OutcomeConstructed   = "constructed"
	OutcomeFailed        = "failed"
	OutcomeNotRegistered = "not_registered"
	OutcomeCircular      = "circular"
)

// RegistryMetrics holds the instruments a registry records resolutions on.
// A nil *RegistryMetrics is valid and records nothing.
type RegistryMetrics struct {
	resolutions          metric.Int64Counter
	constructions        metric.Int64Counter
	constructionDuration metric.Float64Histogram
	cached               metric.Int64UpDownCounter
}

// NewRegistryMetrics creates the registry instruments on the given meter.
func NewRegistryMetrics(meter metric.Meter) (*RegistryMetrics, error) {
	resolutions, err := meter.Int64Counter("di.resolutions",
		metric.WithDescription("Resolutions by service and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating di.resolutions counter: %w", err)
	}

	constructions, err := meter.Int64Counter("di.constructions",
		metric.WithDescription("Constructor invocations by service and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating di.constructions counter: %w", err)
	}

	constructionDuration, err := meter.Float64Histogram("di.construction.duration",
		metric.WithDescription("Duration of constructor invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating di.construction.duration histogram: %w", err)
	}

	cached, err := meter.Int64UpDownCounter("di.singletons.cached",
		metric.WithDescription("Number of cached singleton instances"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating di.singletons.cached gauge: %w", err)
	}

	return &RegistryMetrics{
		resolutions:          resolutions,
		constructions:        constructions,
		constructionDuration: constructionDuration,
		cached:               cached,
	}, nil
}

// RecordResolution records one resolution and its outcome.
func (m *RegistryMetrics) RecordResolution(ctx context.Context, registry, service, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("registry", registry),
		attribute.String("service", service),
		attribute.String("outcome", outcome),
	))
}

// RecordConstruction records one constructor invocation.
func (m *RegistryMetrics) RecordConstruction(ctx context.Context, registry, service, lifetime string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.constructions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("registry", registry),
		attribute.String("service", service),
		attribute.String("lifetime", lifetime),
		attribute.String("status", status),
	))
	m.constructionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("registry", registry),
		attribute.String("service", service),
	))
}

// RecordCached adjusts the cached singleton count by delta.
func (m *RegistryMetrics) RecordCached(ctx context.Context, registry string, delta int64) {
	if m == nil || delta == 0 {
		return
	}
	m.cached.Add(ctx, delta, metric.WithAttributes(attribute.String("registry", registry)))
}
