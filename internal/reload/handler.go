package reload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gneuro/tgrelay/internal/config"
	"github.com/gneuro/tgrelay/internal/core"
)

// ServiceName is the service registry key of the Handler.
const ServiceName = "config.reloader"

// Handler reloads application configuration and notifies modules.
// Concurrent reloads are serialised.
type Handler struct {
	app    *core.App
	base   *core.AppContext
	logger *slog.Logger
	path   string

	// Prepare, if set, adjusts a freshly loaded config before validation.
	Prepare func(*config.Config)

	mu sync.Mutex
}

// NewHandler creates a reload handler for the config file at path. Reloaded
// modules see base's services and data directory.
func NewHandler(app *core.App, base *core.AppContext, path string) *Handler {
	return &Handler{
		app:    app,
		base:   base,
		logger: base.Logger.With("component", "reload"),
		path:   path,
	}
}

// ReloadConfig reloads the file the handler was created for.
func (h *Handler) ReloadConfig(ctx context.Context) error {
	return h.HandleReload(ctx, h.path)
}

// HandleReload loads a fresh config from disk, validates it, and calls Reload
// on all modules that implement core.Reloader.
func (h *Handler) HandleReload(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if h.Prepare != nil {
		h.Prepare(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return h.handleReload(ctx, cfg)
}

// HandleReloadFromConfig reloads modules from a pre-loaded, already-validated
// config.
func (h *Handler) HandleReloadFromConfig(ctx context.Context, cfg *config.Config) error {
	return h.handleReload(ctx, cfg)
}

func (h *Handler) handleReload(ctx context.Context, cfg *config.Config) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}

	if err := h.app.ReloadModules(h.base.WithModuleConfigs(cfg.Modules)); err != nil {
		return fmt.Errorf("reloading modules: %w", err)
	}

	h.logger.Info("configuration reloaded successfully")
	return nil
}

// Run applies a reload for every watcher event until ctx is done. Failures
// are logged and the previous configuration stays in effect.
func (h *Handler) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			h.logger.Info("config file changed", "path", ev.ConfigPath)
			if err := h.HandleReload(ctx, ev.ConfigPath); err != nil {
				h.logger.Error("config reload failed", "error", err)
			}
		}
	}
}
