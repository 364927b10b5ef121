package bootstrap

import (
	"context"

	"github.com/kbukum/dikit/observability"
)

// initTelemetry installs the OTLP tracer and meter providers when telemetry
// is enabled. Registries created before this point pick them up through the
// global delegating providers.
func (a *App[C]) initTelemetry(ctx context.Context) error {
	base := a.Cfg.GetServiceConfig()
	tc := base.Telemetry
	if !tc.Enabled {
		return nil
	}

	tel, err := observability.InitTelemetry(ctx, &observability.TelemetryConfig{
		ExportConfig: observability.ExportConfig{
			ServiceName:    base.Name,
			ServiceVersion: base.Version,
			Environment:    base.Environment,
			Endpoint:       tc.Endpoint,
			Insecure:       tc.Insecure,
		},
		SampleRate: tc.SampleRate,
		Interval:   tc.Interval,
	})
	if err != nil {
		return err
	}
	a.telemetry = tel
	a.Summary.SetTelemetryEndpoint(tc.Endpoint)
	return nil
}

func (a *App[C]) shutdownTelemetry(ctx context.Context) error {
	tel := a.telemetry
	a.telemetry = nil
	return tel.Shutdown(ctx)
}
