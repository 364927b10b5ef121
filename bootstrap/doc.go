// Package bootstrap runs a dikit host: it validates the typed configuration,
// initializes logging and telemetry, owns the service registry and drives
// startup and shutdown hooks.
//
// # Quick Start
//
//	var cfg MyConfig
//	if err := config.LoadConfig("my-service", &cfg); err != nil {
//	    log.Fatal(err)
//	}
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*MyConfig]) error {
//	    di.RegisterSingleton(a.Registry, newStore)
//	    return nil
//	})
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// When the registry config sets warm_on_start, every singleton is constructed
// before the ready hooks run. Shutdown closes cached singletons that
// implement io.Closer.
package bootstrap
