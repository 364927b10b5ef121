package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/dikit/di"
	"github.com/kbukum/dikit/inspect"
	"github.com/kbukum/dikit/logger"
	"github.com/kbukum/dikit/observability"
)

// App represents a generic application with uniform lifecycle management
// around one service registry.
// The type parameter C is the config type, which must satisfy the Config interface.
// Any struct embedding config.ServiceConfig automatically satisfies Config.
//
// Example:
//
//	app, err := bootstrap.NewApp(&myConfig)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*MyConfig]) error {
//	    di.RegisterSingleton(a.Registry, newStore)
//	    return nil
//	})
//	app.Run(context.Background())
type App[C Config] struct {
	Name     string
	Version  string
	Cfg      C
	Registry *di.Registry
	Logger   *logger.Logger
	Summary  *Summary

	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App[C]) error
	checkers        []observability.HealthChecker
	inspect         *inspect.Server
	telemetry       *observability.Telemetry

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp creates a new application instance from a typed config.
// It applies defaults, validates the config, initializes the logger and
// builds the registry from the config's Registry section.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	base := cfg.GetServiceConfig()

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}

	o := resolveOptions(opts)
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	// Logger: use custom if provided, otherwise init from config.
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(&base.Logging)
		logger.RegisterDefaults("di", "inspect")
		app.Logger = logger.GetGlobalLogger()
	}

	if o.registry != nil {
		app.Registry = o.registry
	} else {
		regOpts := append([]di.Option{
			di.WithConfig(base.Registry),
			di.WithLogger(app.Logger.WithComponent("di")),
		}, o.registryOpts...)
		app.Registry = di.New(regOpts...)
	}

	app.Summary = NewSummary(base.Name, base.Version)
	return app, nil
}

// OnConfigure registers a callback to run during the configure phase.
// Use this to register services on a.Registry.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// AddHealthChecker includes c in the ready check and the health endpoint
// summary.
func (a *App[C]) AddHealthChecker(c observability.HealthChecker) {
	a.checkers = append(a.checkers, c)
}

// Health aggregates the registry and every added checker.
func (a *App[C]) Health(ctx context.Context) *observability.ServiceHealth {
	return observability.CheckAll(ctx, a.Name, a.Version, append([]observability.HealthChecker{a.Registry}, a.checkers...)...)
}

// ReadyCheck verifies that the registry and all added checkers are up.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Health(ctx).Unhealthy() {
		detail := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			detail += "(" + h.Message + ")"
		}
		unhealthy = append(unhealthy, detail)
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run executes the full application lifecycle for long-running services:
// Telemetry → OnStart hooks → Configure → Warm → Inspect → ReadyCheck →
// OnReady hooks → Block on signal → OnStop hooks → Graceful Shutdown.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop(ctx)
}

// RunTask executes a finite task with the full bootstrap lifecycle.
// Unlike Run(), it does not block on shutdown signals. The task context is
// canceled on SIGINT/SIGTERM or when ctx is done; shutdown always follows
// and the task's own error takes precedence over shutdown errors.
//
// Example:
//
//	app, _ := bootstrap.NewApp(&cfg)
//	app.RunTask(ctx, func(ctx context.Context) error {
//	    store, err := di.Resolve[*Store](app.Registry)
//	    if err != nil {
//	        return err
//	    }
//	    return store.Migrate(ctx)
//	})
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	taskErr := task(taskCtx)
	stopSignals()

	stopErr := a.stop(ctx)
	if taskErr != nil {
		return taskErr
	}
	return stopErr
}

// startup performs the common initialization sequence shared by Run and RunTask.
func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	base := a.Cfg.GetServiceConfig()

	a.Logger.Info("Starting application", map[string]interface{}{
		"name":    a.Name,
		"version": a.Version,
	})

	if err := a.initTelemetry(ctx); err != nil {
		return fmt.Errorf("telemetry initialization failed: %w", err)
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	if err := a.configure(ctx); err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	if base.Registry.WarmOnStart {
		warmStart := time.Now()
		if err := a.Registry.WarmSingletonsContext(ctx); err != nil {
			return fmt.Errorf("singleton warm-up failed: %w", err)
		}
		a.Logger.Info("Singletons warmed", logger.DurationFields("warm", time.Since(warmStart)))
	}

	if base.Inspect.Enabled {
		a.inspect = inspect.New(base.Inspect, a.Name, a.Registry, a.Logger, a.checkers...)
		if err := a.inspect.Start(ctx); err != nil {
			return err
		}
		a.Summary.SetInspectAddr(a.inspect.Addr())
	}

	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.DisplaySummary()

	return nil
}

// DisplaySummary prints the startup summary with the registry's current
// registrations.
func (a *App[C]) DisplaySummary() {
	a.Summary.DisplaySummary(a.Registry, a.Logger)
}

// configure runs registered configuration callbacks.
func (a *App[C]) configure(ctx context.Context) error {
	if len(a.onConfigure) == 0 {
		return nil
	}

	a.Logger.Info("Running configuration callbacks", map[string]interface{}{
		"count": len(a.onConfigure),
	})

	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return err
		}
	}

	a.Logger.Info("Configuration complete", map[string]interface{}{
		"registrations": a.Registry.Len(),
	})
	return nil
}

// WaitForSignal blocks until an OS interrupt/term signal or context cancellation.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal, graceful shutdown starting", map[string]interface{}{
			"signal": sig.String(),
		})
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown performs graceful shutdown. Use when managing your own lifecycle.
func (a *App[C]) Shutdown(ctx context.Context) error {
	return a.stop(ctx)
}

// shutdownStep is one stage of stop; steps run in order and all run even
// when an earlier one fails.
type shutdownStep struct {
	name string
	run  func(ctx context.Context) error
}

// stop runs the OnStop hooks, stops the inspect server, closes the registry
// and flushes telemetry. The graceful timeout applies to the whole sequence
// and is detached from parent's cancellation so a canceled run still drains.
func (a *App[C]) stop(parent context.Context) error {
	a.Logger.Info("Shutting down application", map[string]interface{}{
		"timeout": a.gracefulTimeout.String(),
	})

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.gracefulTimeout)
	defer cancel()

	steps := []shutdownStep{
		{"stop_hooks", func(ctx context.Context) error { return runHooks(ctx, a.onStop) }},
		{"inspect_stop", a.stopInspect},
		{"registry_close", func(context.Context) error { return a.Registry.Close() }},
		{"telemetry_shutdown", a.shutdownTelemetry},
	}

	var errs []error
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			a.Logger.Error("Shutdown step failed", logger.ErrorFields(step.name, err))
			errs = append(errs, err)
		}
	}

	a.Logger.Info("Application shutdown complete")
	return stderrors.Join(errs...)
}

func (a *App[C]) stopInspect(ctx context.Context) error {
	if a.inspect == nil {
		return nil
	}
	srv := a.inspect
	a.inspect = nil
	return srv.Stop(ctx)
}
