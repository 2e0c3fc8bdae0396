// Package deliverytest provides test helpers for the delivery package.
package deliverytest

import (
	"context"
	"sync"

	"github.com/gneuro/tgrelay/internal/delivery"
)

// Call is one recorded Deliver invocation.
type Call struct {
	ChatID    int64
	Text      string
	Formatted bool
	ReplyTo   int
}

// Transport is a recording test double for delivery.Transport.
// DeliverFunc, when set, decides the error returned for each call; the
// call index is zero-based across the transport's lifetime.
// All methods are safe for concurrent use.
type Transport struct {
	DeliverFunc func(call int, c Call) error

	mu    sync.Mutex
	calls []Call
}

// Deliver records the call and delegates to DeliverFunc.
func (t *Transport) Deliver(_ context.Context, chatID int64, text string, formatted bool, replyTo int) error {
	c := Call{ChatID: chatID, Text: text, Formatted: formatted, ReplyTo: replyTo}

	t.mu.Lock()
	idx := len(t.calls)
	t.calls = append(t.calls, c)
	fn := t.DeliverFunc
	t.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(idx, c)
}

// Calls returns a copy of the recorded calls.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Call, len(t.calls))
	copy(out, t.calls)
	return out
}

// FailAt returns a DeliverFunc that fails the listed call indexes with the
// mapped error and succeeds otherwise.
func FailAt(errs map[int]error) func(int, Call) error {
	return func(call int, _ Call) error {
		return errs[call]
	}
}

var _ delivery.Transport = (*Transport)(nil)
