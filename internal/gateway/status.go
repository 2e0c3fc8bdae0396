package gateway

import (
	"net/http"
	"time"

	"github.com/samber/lo"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime    int64    `json:"uptime_seconds"`
	Sessions  int      `json:"sessions"`
	Providers []string `json:"providers"`
	Webhooks  bool     `json:"webhooks_enabled"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime: int64(time.Since(g.startedAt).Truncate(time.Second) / time.Second),
			Providers: lo.Map(g.providers, func(np namedProvider, _ int) string {
				return np.name + "/" + np.provider.ModelName()
			}),
			Webhooks: g.dispatcher != nil,
		}

		if g.sessions != nil {
			resp.Sessions = g.sessions.Len()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
