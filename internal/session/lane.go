package session

import "sync"

// LaneLock serialises work per chat while letting different chats proceed
// in parallel. The outer mutex only guards the lane map.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[int64]*lane
}

// refs counts holders and waiters; a stale lane is dropped when refs hits zero.
type lane struct {
	mu    sync.Mutex
	refs  int
	stale bool
}

// NewLaneLock creates an empty LaneLock.
func NewLaneLock() *LaneLock {
	return &LaneLock{lanes: make(map[int64]*lane)}
}

// Acquire blocks until the chat's lane is free. Pair with Release.
func (l *LaneLock) Acquire(chatID int64) {
	l.mu.Lock()
	ln, ok := l.lanes[chatID]
	if !ok {
		ln = &lane{}
		l.lanes[chatID] = ln
	}
	ln.refs++
	ln.stale = false
	l.mu.Unlock()

	ln.mu.Lock()
}

// Release frees the chat's lane.
func (l *LaneLock) Release(chatID int64) {
	l.mu.Lock()
	ln, ok := l.lanes[chatID]
	if !ok {
		l.mu.Unlock()
		return
	}
	ln.refs--
	if ln.refs == 0 && ln.stale {
		delete(l.lanes, chatID)
	}
	l.mu.Unlock()

	ln.mu.Unlock()
}

// Cleanup forgets lanes for chats not in active. Lanes still held are
// marked stale and dropped on their last Release.
func (l *LaneLock) Cleanup(active map[int64]struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, ln := range l.lanes {
		if _, ok := active[id]; ok {
			ln.stale = false
			continue
		}
		ln.stale = true
		if ln.refs == 0 {
			delete(l.lanes, id)
		}
	}
}

func (l *LaneLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
