package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gneuro/tgrelay/internal/provider/providertest"
)

func TestStatus_Report(t *testing.T) {
	t.Parallel()

	g := &Gateway{
		sessions:   newFakeSessions(1, 2),
		dispatcher: NewWebhookDispatcher(testLogger(), nil),
		providers: []namedProvider{
			{name: "provider.gemini", provider: &providertest.MockProvider{Model: "gemini-2.5-flash"}},
		},
		startedAt: time.Now().Add(-5 * time.Minute),
	}

	rr := httptest.NewRecorder()
	g.handleStatus().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sessions != 2 {
		t.Errorf("sessions = %d, want 2", resp.Sessions)
	}
	if resp.Uptime < 299 {
		t.Errorf("uptime = %d, want about 300", resp.Uptime)
	}
	if len(resp.Providers) != 1 || resp.Providers[0] != "provider.gemini/gemini-2.5-flash" {
		t.Errorf("providers = %v", resp.Providers)
	}
	if !resp.Webhooks {
		t.Error("webhooks_enabled = false")
	}
}
