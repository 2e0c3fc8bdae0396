package gemini

import (
	"fmt"
	"time"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = "60s"
)

// Config holds the configuration for the Gemini provider module.
type Config struct {
	APIKey          string   `yaml:"api_key" validate:"required"`
	Model           string   `yaml:"model" validate:"required"`
	BaseURL         string   `yaml:"base_url" validate:"required,url"`
	MaxOutputTokens int      `yaml:"max_output_tokens" validate:"gte=0"`
	Temperature     *float64 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	TopP            *float64 `yaml:"top_p" validate:"omitempty,gte=0,lte=1"`
	Timeout         string   `yaml:"timeout"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout == "" {
		c.Timeout = defaultTimeout
	}
}

// parsedTimeout returns the timeout as a time.Duration.
// Assumes the value has been validated by validateTimeout.
func (c *Config) parsedTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return time.Minute
	}
	return d
}

func (c *Config) validateTimeout() error {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return fmt.Errorf("provider.gemini: invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return fmt.Errorf("provider.gemini: timeout must be positive, got %s", d)
	}
	return nil
}
