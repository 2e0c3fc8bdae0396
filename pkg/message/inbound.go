package message

import (
	"encoding/json"
	"strings"
	"time"
)

// InboundMessage represents a text message received from a channel.
type InboundMessage struct {
	// ID is the platform message identifier, used as a reply target.
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Channel   string          `json:"channel"`
	Sender    Sender          `json:"sender"`
	Chat      Chat            `json:"chat"`
	Text      string          `json:"text"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Command parses a leading bot command such as "/start" or
// "/start@my_bot payload". name is returned without the slash and without
// the bot suffix. ok is false when the text is not a command.
func (m *InboundMessage) Command() (name, args string, ok bool) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(head, "@")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(rest), true
}

// IsGroup reports whether the message was sent in a group chat.
func (m *InboundMessage) IsGroup() bool {
	return m.Chat.IsGroup()
}

// IsDirectMessage reports whether the message is a direct message.
func (m *InboundMessage) IsDirectMessage() bool {
	return m.Chat.IsDirectMessage()
}
