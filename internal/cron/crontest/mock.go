// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gneuro/tgrelay/internal/cron"
)

// MockJob is a configurable cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and counts the call.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of Run calls.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastCall returns the time of the last Run call.
func (m *MockJob) LastCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

// SessionPruner is a cron.SessionPruner double.
type SessionPruner struct {
	PruneFunc  func(maxIdle time.Duration) int
	PruneCalls atomic.Int32
}

// Prune implements cron.SessionPruner.
func (m *SessionPruner) Prune(maxIdle time.Duration) int {
	m.PruneCalls.Add(1)
	if m.PruneFunc != nil {
		return m.PruneFunc(maxIdle)
	}
	return 0
}

// AuditPruner is a cron.AuditPruner double that remembers the last cutoff.
type AuditPruner struct {
	DeleteFunc func(cutoff time.Time) (int64, error)

	mu     sync.Mutex
	cutoff time.Time
}

// DeleteBefore implements cron.AuditPruner.
func (m *AuditPruner) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	m.cutoff = cutoff
	m.mu.Unlock()
	if m.DeleteFunc != nil {
		return m.DeleteFunc(cutoff)
	}
	return 0, nil
}

// Cutoff returns the cutoff of the most recent DeleteBefore call.
func (m *AuditPruner) Cutoff() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cutoff
}
