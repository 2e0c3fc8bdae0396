package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if g.metrics != nil {
		r.Use(g.metrics.middleware)
	}

	// Public, no auth.
	r.Get("/", handlePing)
	r.Get("/health", g.handleHealth())
	if g.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
	}

	// Webhooks carry their own per-source auth.
	r.Post("/webhooks/{source}", g.dispatcher.ServeHTTP)

	// Admin endpoints are not mounted without auth.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.logger))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Get("/sessions", g.handleListSessions())
				r.Delete("/sessions/{chatID}", g.handleDeleteSession())
				r.Get("/deliveries", g.handleListDeliveries())
				r.Get("/modules", g.handleListModules())
				r.Post("/config/reload", g.handleReloadConfig())
			})
		})
	}

	return r
}

// handlePing answers liveness probes from load balancers and uptime checks.
func handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Ping received!"))
}
