// Package gateway provides the HTTP server for webhooks, health, metrics,
// and administration. It binds to loopback by default and follows the
// module system pattern.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/gneuro/tgrelay/internal/config"
	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/delivery"
	"github.com/gneuro/tgrelay/internal/provider"
	"github.com/gneuro/tgrelay/internal/relay"
	"github.com/gneuro/tgrelay/internal/reload"
	"github.com/gneuro/tgrelay/internal/session"
	"github.com/gneuro/tgrelay/internal/telemetry"
)

// ModuleID is the gateway module identifier.
const ModuleID = "gateway.http"

func init() {
	core.RegisterModule(&Gateway{})
}

// SessionStore is the view of the session store the admin API needs.
type SessionStore interface {
	Len() int
	Snapshot() []session.Info
	Delete(chatID int64) error
}

// ConfigReloader re-reads the configuration file and reloads modules.
type ConfigReloader interface {
	ReloadConfig(ctx context.Context) error
}

// namedProvider is a provider module resolved at start.
type namedProvider struct {
	name     string
	provider provider.Provider
}

// Gateway is the HTTP gateway module. Nothing imports it; other modules
// reach it through the webhook dispatcher service.
type Gateway struct {
	config     Config
	appCtx     *core.AppContext
	logger     *slog.Logger
	server     *http.Server
	dispatcher *WebhookDispatcher
	metrics    *httpMetrics
	gatherer   prometheus.Gatherer
	startedAt  time.Time

	// Resolved lazily at Start() via the service registry.
	sessions  SessionStore
	history   delivery.History
	reloader  ConfigReloader
	providers []namedProvider
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("%s: decode config: %w", ModuleID, err)
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The dispatcher is published here so
// that channel modules can attach their webhook handlers before Start.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.dispatcher = NewWebhookDispatcher(g.logger, g.config.secrets())
	ctx.RegisterService(DispatcherService, g.dispatcher)

	if reg, ok := core.Service[*prometheus.Registry](ctx, telemetry.RegistryService); ok {
		g.metrics = newHTTPMetrics(reg)
		g.gatherer = reg
	}

	for source, cfg := range g.config.Webhooks {
		if cfg.Secret != "" {
			g.logger.Info("webhook source configured", "source", source)
		}
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if err := config.ValidateStruct(ModuleID, &g.config); err != nil {
		return err
	}
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves optional services and starts
// the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolveServices binds the optional services. Missing ones disable the
// matching endpoints.
func (g *Gateway) resolveServices() {
	if store, ok := core.Service[SessionStore](g.appCtx, relay.SessionsService); ok {
		g.sessions = store
	}
	if h, ok := core.Service[delivery.History](g.appCtx, delivery.RecorderService); ok {
		g.history = h
	}
	if r, ok := core.Service[ConfigReloader](g.appCtx, reload.ServiceName); ok {
		g.reloader = r
	}

	g.providers = nil
	for _, info := range core.GetModulesByNamespace("provider") {
		if p, ok := core.Service[provider.Provider](g.appCtx, string(info.ID)); ok {
			g.providers = append(g.providers, namedProvider{name: string(info.ID), provider: p})
		}
	}
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
