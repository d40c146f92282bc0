package config

import (
	"fmt"
	"time"

	"github.com/kbukum/chainkit/observability"
	"github.com/kbukum/chainkit/validation"
	"github.com/kbukum/chainkit/version"
)

// DefaultHighWaterMark is the stream buffer size used when none is configured.
const DefaultHighWaterMark = 16

// StreamConfig sizes the buffering consumer of a stream.
type StreamConfig struct {
	// HighWaterMark is the number of queued items at which the consumer
	// reports saturation and the stream pauses.
	HighWaterMark int `yaml:"high_water_mark" mapstructure:"high_water_mark" validate:"gte=1"`
}

// PipelineConfig points at a YAML pipeline definition.
type PipelineConfig struct {
	// File is the path of the definition. Empty means an identity pipeline.
	File string `yaml:"file" mapstructure:"file"`
	// Name selects one definition when File holds a "pipelines" catalog.
	Name string `yaml:"name" mapstructure:"name"`
}

// Config is the full configuration of a chainkit binary.
type Config struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Tracing  observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics  observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
	Stream   StreamConfig               `yaml:"stream" mapstructure:"stream"`
	Pipeline PipelineConfig             `yaml:"pipeline" mapstructure:"pipeline"`
}

// ApplyDefaults fills empty fields, propagating the service identity into
// the tracing and metrics sections.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Version == "" {
		c.Version = version.Version
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Name
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = c.Version
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = c.Environment
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = observability.ExporterOTLP
	}
	if c.Tracing.Enabled && c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}

	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = c.Name
	}
	if c.Metrics.ServiceVersion == "" {
		c.Metrics.ServiceVersion = c.Version
	}
	if c.Metrics.Environment == "" {
		c.Metrics.Environment = c.Environment
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 15 * time.Second
	}

	if c.Stream.HighWaterMark == 0 {
		c.Stream.HighWaterMark = DefaultHighWaterMark
	}
}

// Validate checks the whole configuration. Struct tags are checked through
// the validation package; an enabled OTLP exporter also needs an endpoint.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	v := validation.New()
	if c.Tracing.Enabled && c.Tracing.Exporter != observability.ExporterStdout {
		v.Required("tracing.endpoint", c.Tracing.Endpoint)
	}
	if c.Metrics.Enabled {
		v.Required("metrics.endpoint", c.Metrics.Endpoint)
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// Load reads the configuration of serviceName, applies defaults and
// validates it.
func Load(serviceName string, opts ...LoaderOption) (*Config, error) {
	var cfg Config
	if err := LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = serviceName
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
