// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for tgrelay.
package config

import "gopkg.in/yaml.v3"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// EnsureModule adds an empty section for id unless one is present, so that
// modules with usable defaults load without being listed.
func (c *Config) EnsureModule(id string) {
	if _, ok := c.Modules[id]; ok {
		return
	}
	if c.Modules == nil {
		c.Modules = make(map[string]yaml.Node)
	}
	c.Modules[id] = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}
