package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gneuro/tgrelay/internal/provider"
)

// ErrNotFound is returned when a chat has no live session.
var ErrNotFound = errors.New("session: not found")

// Store holds the live sessions, keyed by chat ID. It is safe for
// concurrent use.
type Store struct {
	provider provider.Provider
	lanes    *LaneLock

	mu       sync.RWMutex
	sessions map[int64]*Session
	opts     Options

	// now is injectable for tests.
	now func() time.Time
}

// NewStore creates an empty store whose sessions talk to p.
func NewStore(p provider.Provider, opts Options) *Store {
	return &Store{
		provider: p,
		lanes:    NewLaneLock(),
		sessions: make(map[int64]*Session),
		opts:     opts,
		now:      time.Now,
	}
}

// SetOptions replaces the options used by subsequent Send calls.
func (s *Store) SetOptions(opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
}

func (s *Store) options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// GetOrCreate returns the chat's session, creating it if needed. The bool
// is true when a new session was created.
func (s *Store) GetOrCreate(chatID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[chatID]; ok {
		return sess, false
	}
	now := s.now()
	sess := &Session{
		ID:         ulid.Make().String(),
		ChatID:     chatID,
		CreatedAt:  now,
		store:      s,
		lastActive: now,
	}
	s.sessions[chatID] = sess
	return sess, true
}

// Get returns the chat's session, or nil.
func (s *Store) Get(chatID int64) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[chatID]
}

// Reset discards the chat's session. It reports whether one existed.
func (s *Store) Reset(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[chatID]
	delete(s.sessions, chatID)
	return ok
}

// Delete discards the chat's session or returns ErrNotFound.
func (s *Store) Delete(chatID int64) error {
	if !s.Reset(chatID) {
		return fmt.Errorf("chat %d: %w", chatID, ErrNotFound)
	}
	return nil
}

// Prune removes sessions idle for longer than maxIdle and returns how many
// were removed. Sessions with a request in flight are kept.
func (s *Store) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	cutoff := s.now().Add(-maxIdle)
	pruned := 0
	active := make(map[int64]struct{}, len(s.sessions))
	for id, sess := range s.sessions {
		if !sess.sendMu.TryLock() {
			active[id] = struct{}{}
			continue
		}
		idle := sess.LastActiveAt().Before(cutoff)
		sess.sendMu.Unlock()
		if idle {
			delete(s.sessions, id)
			pruned++
			continue
		}
		active[id] = struct{}{}
	}
	s.mu.Unlock()

	s.lanes.Cleanup(active)
	return pruned
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Range calls fn for each session until fn returns false. The store is not
// locked while fn runs.
func (s *Store) Range(fn func(*Session) bool) {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.RUnlock()

	for _, sess := range list {
		if !fn(sess) {
			return
		}
	}
}

// Snapshot returns Info for every session ordered by chat ID.
func (s *Store) Snapshot() []Info {
	var out []Info
	s.Range(func(sess *Session) bool {
		out = append(out, sess.Info())
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

// Lock serialises all work for a chat. The returned func releases it.
func (s *Store) Lock(chatID int64) func() {
	s.lanes.Acquire(chatID)
	return func() { s.lanes.Release(chatID) }
}
