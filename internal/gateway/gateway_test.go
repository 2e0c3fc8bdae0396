package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/relay"
	"github.com/gneuro/tgrelay/internal/reload"
	"github.com/gneuro/tgrelay/internal/telemetry"
)

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	info := g.ModuleInfo()

	if info.ID != ModuleID {
		t.Errorf("ID = %q, want %q", info.ID, ModuleID)
	}
	if info.New == nil {
		t.Fatal("New func is nil")
	}
	if _, ok := info.New().(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
}

func TestGateway_ConfigureDefaults(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "{}")); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "127.0.0.1:8080" {
		t.Errorf("Bind = %q, want default", g.config.Bind)
	}
	if g.config.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want 10s", g.config.ReadTimeout)
	}
	if g.config.WriteTimeout != 30*time.Second {
		t.Errorf("WriteTimeout = %v, want 30s", g.config.WriteTimeout)
	}
	if g.config.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", g.config.ShutdownTimeout)
	}
}

func TestGateway_ConfigureCustom(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	node := mustYAMLNode(t, `
bind: "0.0.0.0:9090"
read_timeout: 5s
write_timeout: 15s
shutdown_timeout: 10s
auth:
  bearer_token: "my-token"
webhooks:
  github:
    secret: "gh-secret"
`)

	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "0.0.0.0:9090" {
		t.Errorf("Bind = %q, want custom", g.config.Bind)
	}
	if g.config.Auth.BearerToken != "my-token" {
		t.Errorf("BearerToken = %q", g.config.Auth.BearerToken)
	}
	if wh, ok := g.config.Webhooks["github"]; !ok || wh.Secret != "gh-secret" {
		t.Errorf("Webhooks = %+v", g.config.Webhooks)
	}
	if got := g.config.secrets()["github"]; got != "gh-secret" {
		t.Errorf("secrets()[github] = %q", got)
	}
}

func TestGateway_Provision(t *testing.T) {
	t.Parallel()

	appCtx := core.NewAppContext(testLogger(), t.TempDir())
	appCtx.RegisterService(telemetry.RegistryService, prometheus.NewRegistry())

	g := &Gateway{}
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	if g.metrics == nil || g.gatherer == nil {
		t.Error("metrics should be initialized from the registry service")
	}
	d, ok := core.Service[*WebhookDispatcher](appCtx, DispatcherService)
	if !ok || d != g.dispatcher {
		t.Error("dispatcher not registered")
	}
}

func TestGateway_ProvisionWithoutRegistry(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Provision(core.NewAppContext(testLogger(), t.TempDir())); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if g.metrics != nil {
		t.Error("metrics should stay nil without a registry")
	}
}

func TestGateway_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bind    string
		wantErr bool
	}{
		{"127.0.0.1:8080", false},
		{":8080", false},
		{"not a valid address::", true},
		{"", true},
	}
	for _, tt := range tests {
		g := &Gateway{config: Config{Bind: tt.bind}}
		if err := g.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) = %v, wantErr %v", tt.bind, err, tt.wantErr)
		}
	}
}

// freeAddr returns a free TCP address on localhost.
func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

// do makes a request with context and an optional bearer token.
func do(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func newTestGateway(t *testing.T, auth AuthConfig) (*Gateway, *core.AppContext, string) {
	t.Helper()
	addr := freeAddr(t)
	appCtx := core.NewAppContext(testLogger(), t.TempDir())
	appCtx.RegisterService(telemetry.RegistryService, prometheus.NewRegistry())

	g := &Gateway{config: Config{
		Bind:            addr,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 2 * time.Second,
		Auth:            auth,
	}}
	if err := g.Provision(appCtx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	return g, appCtx, "http://" + addr
}

func startGateway(t *testing.T, g *Gateway) {
	t.Helper()
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = g.Stop(context.Background()) })
}

func TestGateway_StartStop(t *testing.T) {
	t.Parallel()

	g, _, base := newTestGateway(t, AuthConfig{})
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp := do(t, http.MethodGet, base+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health.Status = %q, want %q", health.Status, "ok")
	}

	if err := g.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestGateway_Ping(t *testing.T) {
	t.Parallel()

	g, _, base := newTestGateway(t, AuthConfig{})
	startGateway(t, g)

	resp := do(t, http.MethodGet, base+"/", "")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "Ping received!" {
		t.Errorf("GET / = %d %q", resp.StatusCode, body)
	}
}

func TestGateway_StartResolvesServices(t *testing.T) {
	t.Parallel()

	g, appCtx, base := newTestGateway(t, AuthConfig{BearerToken: "tok"})
	appCtx.RegisterService(relay.SessionsService, newFakeSessions(1))
	reloader := &fakeReloader{}
	appCtx.RegisterService(reload.ServiceName, reloader)
	startGateway(t, g)

	resp := do(t, http.MethodGet, base+"/health", "")
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", health.Sessions)
	}

	if resp := do(t, http.MethodPost, base+"/api/config/reload", "tok"); resp.StatusCode != http.StatusOK {
		t.Errorf("reload status = %d", resp.StatusCode)
	}
	if reloader.count() != 1 {
		t.Errorf("reloads = %d, want 1", reloader.count())
	}

	// No recorder registered.
	if resp := do(t, http.MethodGet, base+"/api/deliveries", "tok"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("deliveries status = %d, want 503", resp.StatusCode)
	}
}

func TestGateway_AdminNotMountedWithoutAuth(t *testing.T) {
	t.Parallel()

	g, _, base := newTestGateway(t, AuthConfig{})
	startGateway(t, g)

	for _, path := range []string{"/status", "/api/sessions"} {
		resp := do(t, http.MethodGet, base+path, "")
		if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("%s code = %d, want 404 or 405 (not mounted)", path, resp.StatusCode)
		}
	}
}

func TestGateway_AdminWithAuth(t *testing.T) {
	t.Parallel()

	g, _, base := newTestGateway(t, AuthConfig{BearerToken: "test-token"})
	startGateway(t, g)

	if resp := do(t, http.MethodGet, base+"/status", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no-auth status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if resp := do(t, http.MethodGet, base+"/status", "test-token"); resp.StatusCode != http.StatusOK {
		t.Errorf("auth status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestGateway_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	g, _, base := newTestGateway(t, AuthConfig{})
	startGateway(t, g)

	do(t, http.MethodGet, base+"/health", "")

	resp := do(t, http.MethodGet, base+"/metrics", "")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `tgrelay_gateway_requests_total{code="200",method="GET",route="/health"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
}

func TestGateway_StopNilServer(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Stop(context.Background()); err != nil {
		t.Errorf("Stop on nil server should not error: %v", err)
	}
}

// mustYAMLNode parses YAML text into a *yaml.Node for Configure calls.
func mustYAMLNode(t *testing.T, text string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		t.Fatalf("YAML parse: %v", err)
	}
	if len(node.Content) > 0 {
		return node.Content[0]
	}
	return &node
}
