package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/session"
)

const (
	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 500
)

// handleListSessions returns all live sessions as JSON.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sessions := []session.Info{}
		if g.sessions != nil {
			if snap := g.sessions.Snapshot(); snap != nil {
				sessions = snap
			}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

// handleDeleteSession drops the session of a chat.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid chat id", http.StatusBadRequest)
			return
		}

		if g.sessions == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		if err := g.sessions.Delete(chatID); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				http.Error(w, "session not found", http.StatusNotFound)
				return
			}
			g.logger.Error("delete session failed", "chat_id", chatID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		g.logger.Info("session deleted via admin API", "chat_id", chatID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleListDeliveries returns the most recent delivery reports.
func (g *Gateway) handleListDeliveries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.history == nil {
			http.Error(w, "delivery audit not enabled", http.StatusServiceUnavailable)
			return
		}

		limit := defaultDeliveryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxDeliveryLimit)
		}

		entries, err := g.history.Recent(r.Context(), limit)
		if err != nil {
			g.logger.Error("list deliveries failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// moduleJSON is a serializable module info snapshot.
type moduleJSON struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// handleListModules lists all compiled modules.
func (g *Gateway) handleListModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := lo.Map(core.GetModules(), func(m core.ModuleInfo, _ int) moduleJSON {
			return moduleJSON{
				ID:        string(m.ID),
				Namespace: m.ID.Namespace(),
				Name:      m.ID.Name(),
			}
		})
		writeJSON(w, http.StatusOK, out)
	}
}

// handleReloadConfig triggers a hot reload of the configuration file.
func (g *Gateway) handleReloadConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.reloader == nil {
			http.Error(w, "config reload not available", http.StatusServiceUnavailable)
			return
		}

		if err := g.reloader.ReloadConfig(r.Context()); err != nil {
			g.logger.Error("config reload failed", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		g.logger.Info("configuration reloaded via admin API")
		writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
