package channel

import (
	"context"
	"sync"

	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/pkg/message"
)

// MockChannel is a test double that implements Channel. It records
// delivered text and typing indicators, and simulates inbound messages via
// SimulateMessage.
type MockChannel struct {
	name      string
	allowList *AllowList

	// DeliverFunc, if set, decides the error returned by each Deliver call.
	DeliverFunc func(chatID int64, text string, formatted bool, replyTo int) error

	mu        sync.Mutex
	inbox     Inbox
	delivered []Delivered
	typing    []int64
}

// Delivered is one recorded Deliver call.
type Delivered struct {
	ChatID    int64
	Text      string
	Formatted bool
	ReplyTo   int
}

// Compile-time interface guards.
var _ Channel = (*MockChannel)(nil)

// NewMockChannel creates a MockChannel with the given name and an optional
// allow-list. A nil allowList admits everyone.
func NewMockChannel(name string, allowList *AllowList) *MockChannel {
	return &MockChannel{name: name, allowList: allowList}
}

// ModuleInfo implements core.Module.
func (m *MockChannel) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID: core.ModuleID("channel." + m.name),
		New: func() core.Module {
			return NewMockChannel(m.name, m.allowList)
		},
	}
}

// Deliver implements delivery.Transport.
func (m *MockChannel) Deliver(_ context.Context, chatID int64, text string, formatted bool, replyTo int) error {
	m.mu.Lock()
	m.delivered = append(m.delivered, Delivered{ChatID: chatID, Text: text, Formatted: formatted, ReplyTo: replyTo})
	fn := m.DeliverFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(chatID, text, formatted, replyTo)
	}
	return nil
}

// SendTyping records the chat ID.
func (m *MockChannel) SendTyping(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, chatID)
	return nil
}

// SetInbox stores the inbox callback.
func (m *MockChannel) SetInbox(fn Inbox) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = fn
}

// SimulateMessage pushes an inbound message through the allow-list and into
// the inbox. It returns ErrDenied if the sender is not allowed, and ErrNoInbox
// if SetInbox has not been called.
func (m *MockChannel) SimulateMessage(ctx context.Context, msg message.InboundMessage) error {
	m.mu.Lock()
	al := m.allowList
	inbox := m.inbox
	m.mu.Unlock()

	if !al.IsAllowed(msg) {
		return ErrDenied
	}
	if inbox == nil {
		return ErrNoInbox
	}
	msg.Channel = "channel." + m.name
	return inbox(ctx, msg)
}

// Delivered returns a copy of the recorded deliveries.
func (m *MockChannel) Delivered() []Delivered {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Delivered, len(m.delivered))
	copy(out, m.delivered)
	return out
}

// Typing returns the chat IDs that received a typing indicator.
func (m *MockChannel) Typing() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.typing))
	copy(out, m.typing)
	return out
}
