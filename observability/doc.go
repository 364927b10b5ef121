// Package observability provides OpenTelemetry tracing and metrics for the
// registry, plus the health model reported by the inspection API.
//
// Providers:
//
//	tel, err := observability.InitTelemetry(ctx, &observability.TelemetryConfig{
//	    ExportConfig: observability.ExportConfig{ServiceName: "billing", Endpoint: "otel:4318"},
//	    SampleRate:   0.1,
//	})
//	defer tel.Shutdown(ctx)
//
// InitTracer and InitMeter install one provider each.
//
// Registries created with Config.Tracing open a "di.construct" span around
// every constructor call; nested resolutions nest their spans. With
// Config.Metrics they record resolution outcomes and construction latency:
//
//	metrics, err := observability.NewRegistryMetrics(observability.Meter("dikit"))
//	reg := di.New(di.WithMetrics(metrics))
//
// Health:
//
//	health := observability.CheckAll(ctx, "billing", version.Version, reg)
//	c.JSON(health.HTTPStatus(), health)
package observability
