package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const testToken = "123456:TEST-token"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// fakeBotAPI is an httptest Bot API that records calls by method name.
// Methods without a handler answer {"ok":true,"result":true}.
type fakeBotAPI struct {
	t        *testing.T
	srv      *httptest.Server
	handlers map[string]func(w http.ResponseWriter, body []byte)

	mu    sync.Mutex
	calls map[string][][]byte
}

func newFakeBotAPI(t *testing.T, handlers map[string]func(w http.ResponseWriter, body []byte)) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{t: t, handlers: handlers, calls: make(map[string][][]byte)}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := "/bot" + testToken + "/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		method := strings.TrimPrefix(r.URL.Path, prefix)
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.calls[method] = append(f.calls[method], body)
		f.mu.Unlock()

		if h, ok := f.handlers[method]; ok {
			h(w, body)
			return
		}
		writeJSON(t, w, APIResponse[bool]{OK: true, Result: true})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBotAPI) client() *Client {
	return NewClient(testToken, f.srv.URL, 5*time.Second)
}

func (f *fakeBotAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls[method])
}

func (f *fakeBotAPI) bodies(method string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.calls[method]...)
}

func okMe(t *testing.T) func(http.ResponseWriter, []byte) {
	return func(w http.ResponseWriter, _ []byte) {
		writeJSON(t, w, APIResponse[User]{OK: true, Result: User{ID: 1, IsBot: true, FirstName: "Relay", Username: "relay_bot"}})
	}
}

func apiError(t *testing.T, status, code int, desc string) func(http.ResponseWriter, []byte) {
	return func(w http.ResponseWriter, _ []byte) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(APIResponse[json.RawMessage]{OK: false, ErrorCode: code, Description: desc})
		_ = t
	}
}
