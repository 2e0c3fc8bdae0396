package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gneuro/tgrelay/internal/core"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry, and that Configurable
// modules are not listed with an empty section.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for _, id := range Resolve(cfg) {
		info, ok := core.GetModule(id)
		if !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
			continue
		}
		node := cfg.Modules[id]
		if _, ok := info.New().(core.Configurable); ok && (node.Kind == 0 || node.Tag == "!!null") {
			errs = append(errs, fmt.Errorf("config: module %q requires configuration but its section is empty", id))
		}
	}

	return errors.Join(errs...)
}

// Require returns an error for every namespace with no configured module.
func Require(cfg *Config, namespaces ...string) error {
	var errs []error
	for _, ns := range namespaces {
		found := slices.ContainsFunc(Resolve(cfg), func(id string) bool {
			return core.ModuleID(id).Namespace() == ns
		})
		if !found {
			errs = append(errs, fmt.Errorf("config: a %s module is required", ns))
		}
	}
	return errors.Join(errs...)
}
