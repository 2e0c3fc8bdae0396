package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gneuro/tgrelay/internal/provider"
)

const healthCheckTimeout = 5 * time.Second

// ProviderStatus is the health of one provider module.
type ProviderStatus struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status    string           `json:"status"` // "ok" or "degraded"
	Sessions  int              `json:"sessions"`
	Providers []ProviderStatus `json:"providers"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 if all providers are healthy, 503 if any is not.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:    "ok",
			Providers: []ProviderStatus{},
		}

		if g.sessions != nil {
			resp.Sessions = g.sessions.Len()
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		for _, np := range g.providers {
			st := probe(ctx, np)
			if !st.Available {
				resp.Status = "degraded"
			}
			resp.Providers = append(resp.Providers, st)
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

// probe runs the provider's health check if it has one.
func probe(ctx context.Context, np namedProvider) ProviderStatus {
	st := ProviderStatus{
		Name:      np.name,
		Model:     np.provider.ModelName(),
		Available: true,
	}
	hc, ok := np.provider.(provider.HealthChecker)
	if !ok {
		return st
	}
	if err := hc.HealthCheck(ctx); err != nil {
		st.Available = false
		st.Error = err.Error()
	}
	return st
}
