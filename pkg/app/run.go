// Package app provides the process entry point shared by the tgrelay CLI
// and its OS service wrapper.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gneuro/tgrelay/internal/config"
	"github.com/gneuro/tgrelay/internal/relay"
	"github.com/gneuro/tgrelay/internal/reload"
	"github.com/gneuro/tgrelay/internal/security"
	"github.com/gneuro/tgrelay/internal/telemetry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Run loads configuration, starts all modules, and blocks until ctx is
// cancelled or SIGINT/SIGTERM is received. SIGHUP and changes to the config
// file trigger a live reload of modules that implement core.Reloader.
func Run(ctx context.Context, params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	if params.Version != "" {
		telemetry.Version = params.Version
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	redactor := security.NewRedactor()
	logger := NewLogger(out, params.LogLevel, redactor)

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	rt, err := newRuntime(logger, redactor, cfg, cfgPath, dataDir)
	if err != nil {
		return err
	}
	if err := rt.start(); err != nil {
		return err
	}
	defer rt.stop()

	logger.Info("tgrelay started",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
		"data_dir", dataDir,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	watcher := reload.NewWatcher(reload.WatcherConfig{
		ConfigPath: cfgPath,
		Logger:     logger,
	})
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config file watching disabled", "error", err)
	}
	defer watcher.Stop()
	go rt.reloader.Run(ctx, watcher.Events())

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return nil
		case <-hup:
			logger.Info("SIGHUP received, reloading configuration")
			if err := rt.reloader.ReloadConfig(ctx); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
	}
}

// PrepareConfig adds the sections of modules that always run, so they load
// with their defaults when the file does not mention them.
func PrepareConfig(cfg *config.Config) {
	cfg.EnsureModule(relay.ModuleID)
}

// LoadConfig reads, prepares, and validates the configuration at path. A
// channel and a provider module must be configured.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	PrepareConfig(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if err := config.Require(cfg, "channel", "provider"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger returns a text logger whose output passes through redactor.
func NewLogger(w io.Writer, level slog.Level, redactor *security.Redactor) *slog.Logger {
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// ParseLogLevel parses debug, info, warn or error (case-insensitive).
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/tgrelay/tgrelay.yaml, then
// ~/.config/tgrelay/tgrelay.yaml, then ./tgrelay.yaml.
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "tgrelay", "tgrelay.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "tgrelay", "tgrelay.yaml"))
	}

	candidates = append(candidates, "tgrelay.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/tgrelay if set, otherwise ~/.local/share/tgrelay.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "tgrelay")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "tgrelay")
}
