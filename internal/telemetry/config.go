package telemetry

import "github.com/gneuro/tgrelay/internal/config"

// Config holds the OTLP trace exporter configuration.
type Config struct {
	// Endpoint is the collector host:port. Defaults to localhost:4318.
	Endpoint string `yaml:"endpoint" validate:"required,hostname_port"`

	// URLPath overrides the default /v1/traces path.
	URLPath string `yaml:"url_path"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	Headers map[string]string `yaml:"headers"`

	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name" validate:"required"`

	// SampleRatio is the fraction of root traces kept. Defaults to 1.
	SampleRatio *float64 `yaml:"sample_ratio" validate:"omitempty,gte=0,lte=1"`
}

func (c *Config) defaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.ServiceName == "" {
		c.ServiceName = "tgrelay"
	}
	if c.SampleRatio == nil {
		r := 1.0
		c.SampleRatio = &r
	}
}

func (c *Config) validate() error {
	return config.ValidateStruct(ModuleID, c)
}
