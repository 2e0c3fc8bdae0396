package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gneuro/tgrelay/internal/delivery"
)

// parseMode is the legacy Markdown dialect the model's replies use.
const parseMode = "Markdown"

// Deliver implements delivery.Transport.
func (t *Telegram) Deliver(ctx context.Context, chatID int64, text string, formatted bool, replyTo int) error {
	req := SendMessageRequest{
		ChatID:                   chatID,
		Text:                     text,
		ReplyToMessageID:         replyTo,
		AllowSendingWithoutReply: replyTo != 0,
	}
	if formatted {
		req.ParseMode = parseMode
	}
	_, err := t.client.SendMessage(ctx, req)
	return classifyError(err)
}

// classifyError tags Bot API rejections with the delivery error kinds the
// sender reacts to. Other errors pass through untouched.
func classifyError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 400 {
		return err
	}
	desc := strings.ToLower(apiErr.Description)
	switch {
	case strings.Contains(desc, "can't parse entities"):
		return fmt.Errorf("%w: %w", delivery.ErrMalformedMarkup, err)
	case strings.Contains(desc, "message is too long"), strings.Contains(desc, "text is too long"):
		return fmt.Errorf("%w: %w", delivery.ErrMessageTooLong, err)
	default:
		return err
	}
}
