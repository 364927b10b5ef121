// Command dikit-inspect runs a registry with a small sample service graph and
// serves it over the inspection API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/dikit/bootstrap"
	"github.com/kbukum/dikit/config"
	"github.com/kbukum/dikit/logger"
	"github.com/kbukum/dikit/version"
)

const serviceName = "dikit-inspect"

var (
	versionFlag = flag.Bool("version", false, "Show version information")
	configFlag  = flag.String("config", "", "Path to a config.yml (default: search standard locations)")
	envFlag     = flag.String("env", "", "Path to a .env file (default: search standard locations)")
)

type inspectConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s %s\n", serviceName, version.GetFullVersion())
		os.Exit(0)
	}

	if err := run(context.Background()); err != nil {
		logger.Error("dikit-inspect failed", logger.ErrorFields("run", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := inspectConfig{
		ServiceConfig: config.ServiceConfig{
			Name:    serviceName,
			Version: version.GetShortVersion(),
			Inspect: config.InspectConfig{Enabled: true, AllowWarm: true},
		},
	}

	opts := []config.LoaderOption{config.WithEnvPrefix("DIKIT")}
	if *configFlag != "" {
		opts = append(opts, config.WithConfigFile(*configFlag))
	}
	if *envFlag != "" {
		opts = append(opts, config.WithEnvFile(*envFlag))
	}
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return err
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}
	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*inspectConfig]) error {
		registerSampleServices(a.Registry, a.Cfg.Environment)
		return nil
	})
	return app.Run(ctx)
}
