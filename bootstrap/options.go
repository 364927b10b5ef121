package bootstrap

import (
	"time"

	"github.com/kbukum/dikit/di"
	"github.com/kbukum/dikit/logger"
)

// Option configures the App during creation.
// Options are non-generic so they can be used with any config type.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	registry        *di.Registry
	registryOpts    []di.Option
	gracefulTimeout *time.Duration
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is auto-initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithRegistry uses an existing registry instead of building one from the
// config's Registry section.
func WithRegistry(reg *di.Registry) Option {
	return func(o *appOptions) {
		o.registry = reg
	}
}

// WithRegistryOptions passes extra options to the registry built from config.
// They are applied after the config, so they win.
func WithRegistryOptions(opts ...di.Option) Option {
	return func(o *appOptions) {
		o.registryOpts = append(o.registryOpts, opts...)
	}
}
