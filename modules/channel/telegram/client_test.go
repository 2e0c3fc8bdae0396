package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_GetMe(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI(t, map[string]func(http.ResponseWriter, []byte){"getMe": okMe(t)})

	user, err := api.client().GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe() error: %v", err)
	}
	if user.ID != 1 || !user.IsBot || user.Username != "relay_bot" {
		t.Errorf("GetMe() = %+v", user)
	}
}

func TestClient_SendMessage(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI(t, map[string]func(http.ResponseWriter, []byte){
		"sendMessage": func(w http.ResponseWriter, body []byte) {
			var req SendMessageRequest
			_ = json.Unmarshal(body, &req)
			writeJSON(t, w, APIResponse[Message]{OK: true, Result: Message{MessageID: 77, Chat: Chat{ID: req.ChatID}, Text: req.Text}})
		},
	})

	msg, err := api.client().SendMessage(context.Background(), SendMessageRequest{
		ChatID: 5, Text: "*hi*", ParseMode: "Markdown", ReplyToMessageID: 9,
	})
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if msg.MessageID != 77 {
		t.Errorf("MessageID = %d, want 77", msg.MessageID)
	}

	var sent map[string]any
	_ = json.Unmarshal(api.bodies("sendMessage")[0], &sent)
	if sent["parse_mode"] != "Markdown" || sent["reply_to_message_id"] != float64(9) {
		t.Errorf("request body = %v", sent)
	}
}

func TestClient_APIError(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI(t, map[string]func(http.ResponseWriter, []byte){
		"sendMessage": apiError(t, http.StatusBadRequest, 400, "Bad Request: chat not found"),
	})

	_, err := api.client().SendMessage(context.Background(), SendMessageRequest{ChatID: 1, Text: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != 400 || !strings.Contains(apiErr.Description, "chat not found") {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestClient_RetriesOn429(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	api := newFakeBotAPI(t, map[string]func(http.ResponseWriter, []byte){
		"sendChatAction": func(w http.ResponseWriter, _ []byte) {
			if calls.Add(1) == 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"ok": false, "error_code": 429, "description": "Too Many Requests",
					"parameters": map[string]any{"retry_after": 1},
				})
				return
			}
			writeJSON(t, w, APIResponse[bool]{OK: true, Result: true})
		},
	})

	start := time.Now()
	if err := api.client().SendChatAction(context.Background(), 1, "typing"); err != nil {
		t.Fatalf("SendChatAction() error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if time.Since(start) < 900*time.Millisecond {
		t.Error("retry did not honour retry_after")
	}
}

func TestClient_RetryHonoursContext(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI(t, map[string]func(http.ResponseWriter, []byte){
		"getMe": func(w http.ResponseWriter, _ []byte) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok": false, "error_code": 429, "description": "Too Many Requests",
				"parameters": map[string]any{"retry_after": 30},
			})
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := api.client().GetMe(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetMe() error = %v, want deadline exceeded", err)
	}
}

func TestClient_TransportErrorHidesToken(t *testing.T) {
	t.Parallel()

	c := NewClient(testToken, "http://127.0.0.1:1", time.Second)
	_, err := c.GetMe(context.Background())
	if err == nil {
		t.Fatal("GetMe() against a closed port should fail")
	}
	if strings.Contains(err.Error(), testToken) {
		t.Errorf("error leaks the bot token: %v", err)
	}
}

func TestClient_Webhooks(t *testing.T) {
	t.Parallel()

	api := newFakeBotAPI(t, nil)
	c := api.client()
	ctx := context.Background()

	if err := c.SetWebhook(ctx, SetWebhookRequest{URL: "https://bot.example.com/webhooks/telegram", SecretToken: "s3"}); err != nil {
		t.Fatalf("SetWebhook() error: %v", err)
	}
	if err := c.DeleteWebhook(ctx, true); err != nil {
		t.Fatalf("DeleteWebhook() error: %v", err)
	}
	if err := c.SetMyCommands(ctx, commands); err != nil {
		t.Fatalf("SetMyCommands() error: %v", err)
	}

	var set SetWebhookRequest
	_ = json.Unmarshal(api.bodies("setWebhook")[0], &set)
	if set.SecretToken != "s3" || !strings.HasSuffix(set.URL, "/webhooks/telegram") {
		t.Errorf("setWebhook body = %+v", set)
	}
	if !strings.Contains(string(api.bodies("deleteWebhook")[0]), `"drop_pending_updates":true`) {
		t.Errorf("deleteWebhook body = %s", api.bodies("deleteWebhook")[0])
	}
	if !strings.Contains(string(api.bodies("setMyCommands")[0]), `"command":"start"`) {
		t.Errorf("setMyCommands body = %s", api.bodies("setMyCommands")[0])
	}
}
