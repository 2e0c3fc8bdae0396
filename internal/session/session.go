// Package session keeps one conversation per Telegram chat and forwards
// user turns to the language model with the accumulated history.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gneuro/tgrelay/internal/provider"
)

// Options configures how sessions talk to the provider.
type Options struct {
	// SystemPrompt is sent as the system instruction on every request.
	SystemPrompt string

	// MaxHistory caps the retained messages per session. Zero keeps everything.
	MaxHistory int

	MaxTokens   int
	Temperature *float64
}

// Session is a single chat's conversation with the model.
type Session struct {
	ID        string
	ChatID    int64
	CreatedAt time.Time

	store *Store

	// sendMu is held for the duration of a provider call.
	sendMu sync.Mutex

	mu         sync.Mutex
	lastActive time.Time
	history    []provider.LLMMessage
}

// Info is a point-in-time view of a session.
type Info struct {
	ID           string    `json:"id"`
	ChatID       int64     `json:"chat_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	Messages     int       `json:"messages"`
}

// Send forwards text as the next user turn and returns the model's reply.
// Calls on the same session are serialised. On failure the history is left
// exactly as it was before the call.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	opts := s.store.options()

	s.mu.Lock()
	msgs := make([]provider.LLMMessage, 0, len(s.history)+2)
	msgs = append(msgs, s.history...)
	s.mu.Unlock()
	msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleUser, Content: text})

	resp, err := s.store.provider.Complete(ctx, provider.CompletionRequest{
		System:      opts.SystemPrompt,
		Messages:    msgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("session %d: %w", s.ChatID, err)
	}

	msgs = append(msgs, provider.LLMMessage{Role: provider.MessageRoleAssistant, Content: resp.Content})

	s.mu.Lock()
	s.history = trimHistory(msgs, opts.MaxHistory)
	s.lastActive = s.store.now()
	s.mu.Unlock()
	return resp.Content, nil
}

// History returns a copy of the conversation so far, oldest first.
func (s *Session) History() []provider.LLMMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.LLMMessage, len(s.history))
	copy(out, s.history)
	return out
}

// LastActiveAt reports when the session last completed a turn.
func (s *Session) LastActiveAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:           s.ID,
		ChatID:       s.ChatID,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.lastActive,
		Messages:     len(s.history),
	}
}

// trimHistory drops the oldest messages so at most limit remain. It drops
// whole user/model pairs so the history always starts with a user turn.
func trimHistory(h []provider.LLMMessage, limit int) []provider.LLMMessage {
	if limit <= 0 || len(h) <= limit {
		return h
	}
	drop := len(h) - limit
	if drop%2 == 1 {
		drop++
	}
	if drop >= len(h) {
		return nil
	}
	out := make([]provider.LLMMessage, len(h)-drop)
	copy(out, h[drop:])
	return out
}
