package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// DispatcherService is the service registry key of the WebhookDispatcher.
const DispatcherService = "gateway.webhook_dispatcher"

// maxWebhookBody bounds the size of an accepted webhook payload.
const maxWebhookBody = 1 << 20

// Errors a WebhookHandler may wrap to choose the HTTP status. Any other
// error answers 500.
var (
	ErrWebhookUnauthorized = errors.New("webhook unauthorized")
	ErrWebhookBadRequest   = errors.New("webhook bad request")
)

// WebhookHandler processes a webhook payload.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error
}

// WebhookDispatcher routes incoming webhooks to registered handlers. Sources
// with a configured secret must carry a valid X-Signature-256 HMAC.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]WebhookHandler
	secrets  map[string]string
	logger   *slog.Logger
}

// NewWebhookDispatcher creates a dispatcher. secrets maps a source to its
// HMAC secret and may be nil.
func NewWebhookDispatcher(logger *slog.Logger, secrets map[string]string) *WebhookDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	s := make(map[string]string, len(secrets))
	for source, secret := range secrets {
		if secret != "" {
			s[source] = secret
		}
	}
	return &WebhookDispatcher{
		handlers: make(map[string]WebhookHandler),
		secrets:  s,
		logger:   logger.With("component", "webhooks"),
	}
}

// Register sets the handler for source, replacing any previous one.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[source] = h
}

// Has reports whether a handler is registered for source.
func (d *WebhookDispatcher) Has(source string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[source]
	return ok
}

// ServeHTTP implements http.Handler. The source comes from the {source}
// URL parameter.
func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := chi.URLParam(r, "source")
	if source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	d.mu.RLock()
	handler, ok := d.handlers[source]
	secret := d.secrets[source]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("webhook received for unregistered source", "source", source)
		http.Error(w, "unknown webhook source", http.StatusNotFound)
		return
	}

	if secret != "" && !validateHMAC(body, r.Header.Get("X-Signature-256"), secret) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	if err := handler.HandleWebhook(r.Context(), source, body, r.Header); err != nil {
		switch {
		case errors.Is(err, ErrWebhookUnauthorized):
			d.logger.Warn("webhook rejected", "source", source, "error", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		case errors.Is(err, ErrWebhookBadRequest):
			d.logger.Warn("webhook rejected", "source", source, "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
		default:
			d.logger.Error("webhook handler failed", "source", source, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// validateHMAC checks an HMAC-SHA256 signature in constant time.
func validateHMAC(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
