package di

import "github.com/kbukum/dikit/validation"

const defaultName = "default"

// Config configures a Registry. It is embedded in the service configuration
// under the "registry" key.
type Config struct {
	// Name labels the registry in logs, metrics and spans.
	Name string `yaml:"name" mapstructure:"name" validate:"required,identifier"`
	// ID is a stable registry identifier; a random UUID is used when empty.
	ID string `yaml:"id" mapstructure:"id" validate:"omitempty,uuid"`
	// LogResolutions logs every resolution at debug level.
	LogResolutions bool `yaml:"log_resolutions" mapstructure:"log_resolutions"`
	// Metrics records resolution metrics on the global meter provider.
	Metrics bool `yaml:"metrics" mapstructure:"metrics"`
	// Tracing opens a span around every constructor invocation.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
	// WarmOnStart constructs all singletons when the application starts.
	WarmOnStart bool `yaml:"warm_on_start" mapstructure:"warm_on_start"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
