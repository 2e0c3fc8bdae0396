// Package channel defines the bridge between messaging platforms and the relay.
// It provides the Channel interface and allow-list filtering.
package channel

import (
	"context"

	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/delivery"
	"github.com/gneuro/tgrelay/pkg/message"
)

// Inbox receives inbound messages from a channel. It runs synchronously in
// the goroutine that received the update, so a webhook answers only after
// the reply has been delivered.
type Inbox func(ctx context.Context, msg message.InboundMessage) error

// Channel is the bridge between a messaging platform and the relay.
//
// A channel receives messages from its platform, checks the allow-list, and
// pushes them to the relay via the inbox. Outbound text goes back through
// the delivery.Transport it implements.
type Channel interface {
	core.Module
	delivery.Transport

	// SetInbox gives the channel a function to push inbound messages to.
	// Called during provisioning, before Start().
	SetInbox(fn Inbox)

	// SendTyping shows a typing indicator in the chat.
	SendTyping(ctx context.Context, chatID int64) error
}
