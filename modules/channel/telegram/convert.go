package telegram

import (
	"errors"
	"strings"
	"time"

	"github.com/gneuro/tgrelay/pkg/message"
)

var (
	errNoMessage = errors.New("update carries no message")
	errNoText    = errors.New("message has no text")
	errOtherBot  = errors.New("command addressed to another bot")
	errFromBot   = errors.New("message sent by a bot")
)

// convertInbound turns a Telegram update into an InboundMessage. Updates
// that the relay does not answer are reported as errors.
func convertInbound(update *Update, botUsername, channelName string) (message.InboundMessage, error) {
	msg := update.Message
	if msg == nil {
		return message.InboundMessage{}, errNoMessage
	}
	if msg.Text == "" {
		return message.InboundMessage{}, errNoText
	}
	if msg.From != nil && msg.From.IsBot {
		return message.InboundMessage{}, errFromBot
	}
	if !addressedToUs(msg.Text, botUsername) {
		return message.InboundMessage{}, errOtherBot
	}

	return message.InboundMessage{
		ID:        msg.MessageID,
		Timestamp: time.Unix(msg.Date, 0).UTC(),
		Channel:   channelName,
		Sender:    convertSender(msg.From),
		Chat:      convertChat(msg.Chat),
		Text:      msg.Text,
	}, nil
}

// addressedToUs rejects "/cmd@otherbot" in group chats.
func addressedToUs(text, botUsername string) bool {
	if !strings.HasPrefix(text, "/") {
		return true
	}
	head, _, _ := strings.Cut(text, " ")
	_, target, ok := strings.Cut(head, "@")
	if !ok || botUsername == "" {
		return true
	}
	return strings.EqualFold(target, botUsername)
}

func convertSender(user *User) message.Sender {
	if user == nil {
		return message.Sender{}
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	return message.Sender{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: name,
	}
}

func convertChat(chat Chat) message.Chat {
	title := chat.Title
	if title == "" {
		title = strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	}
	return message.Chat{
		ID:    chat.ID,
		Type:  mapChatType(chat.Type),
		Title: title,
	}
}

func mapChatType(tgType string) message.ChatType {
	switch tgType {
	case "private":
		return message.ChatDM
	case "channel":
		return message.ChatBroadcast
	default:
		return message.ChatGroup
	}
}
