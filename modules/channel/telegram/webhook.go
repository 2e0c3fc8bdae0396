package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gneuro/tgrelay/internal/channel"
	"github.com/gneuro/tgrelay/internal/gateway"
)

// secretHeader carries the secret_token passed to setWebhook.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookReceiver handles updates posted by Telegram. It implements
// gateway.WebhookHandler.
type WebhookReceiver struct {
	inbox       channel.Inbox
	allowList   *channel.AllowList
	logger      *slog.Logger
	botUsername string
	channelName string
	secret      string
}

var _ gateway.WebhookHandler = (*WebhookReceiver)(nil)

// NewWebhookReceiver creates a WebhookReceiver. An empty secret disables
// the header check.
func NewWebhookReceiver(inbox channel.Inbox, allowList *channel.AllowList, logger *slog.Logger, botUsername, channelName, secret string) *WebhookReceiver {
	return &WebhookReceiver{
		inbox:       inbox,
		allowList:   allowList,
		logger:      logger,
		botUsername: botUsername,
		channelName: channelName,
		secret:      secret,
	}
}

// HandleWebhook checks the secret token, decodes the update and runs the
// inbox synchronously. Updates that are ignored or fail in the relay still
// succeed so Telegram does not redeliver them.
func (w *WebhookReceiver) HandleWebhook(ctx context.Context, _ string, body []byte, headers http.Header) error {
	if w.secret != "" {
		token := headers.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(w.secret), []byte(token)) != 1 {
			return fmt.Errorf("telegram: %w", gateway.ErrWebhookUnauthorized)
		}
	}

	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("telegram: %w: %w", gateway.ErrWebhookBadRequest, err)
	}

	msg, err := convertInbound(&update, w.botUsername, w.channelName)
	if err != nil {
		w.logger.Debug("skipping webhook update", "update_id", update.UpdateID, "reason", err)
		return nil
	}
	msg.Raw = body

	if !w.allowList.IsAllowed(msg) {
		w.logger.Debug("webhook update denied by allow list",
			"update_id", update.UpdateID,
			"sender", msg.Sender.ID,
			"chat", msg.Chat.ID,
		)
		return nil
	}

	if err := w.inbox(ctx, msg); err != nil {
		w.logger.Error("inbox failed for webhook update", "update_id", update.UpdateID, "error", err)
	}
	return nil
}
