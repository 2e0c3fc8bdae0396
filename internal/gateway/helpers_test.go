package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gneuro/tgrelay/internal/delivery"
	"github.com/gneuro/tgrelay/internal/session"
)

// fakeSessions is an in-memory SessionStore.
type fakeSessions struct {
	mu    sync.Mutex
	infos map[int64]session.Info
}

func newFakeSessions(chatIDs ...int64) *fakeSessions {
	f := &fakeSessions{infos: make(map[int64]session.Info)}
	for _, id := range chatIDs {
		f.infos[id] = session.Info{ID: fmt.Sprintf("s-%d", id), ChatID: id, Messages: 2}
	}
	return f
}

func (f *fakeSessions) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.infos)
}

func (f *fakeSessions) Snapshot() []session.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []session.Info
	for _, info := range f.infos {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

func (f *fakeSessions) Delete(chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.infos[chatID]; !ok {
		return fmt.Errorf("chat %d: %w", chatID, session.ErrNotFound)
	}
	delete(f.infos, chatID)
	return nil
}

// fakeHistory returns canned entries and records the requested limit.
type fakeHistory struct {
	entries []delivery.Entry
	err     error

	mu        sync.Mutex
	lastLimit int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]delivery.Entry, error) {
	f.mu.Lock()
	f.lastLimit = limit
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func (f *fakeHistory) limit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastLimit
}

// fakeReloader counts reloads.
type fakeReloader struct {
	err error

	mu    sync.Mutex
	calls int
}

func (f *fakeReloader) ReloadConfig(context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.err
}

func (f *fakeReloader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
