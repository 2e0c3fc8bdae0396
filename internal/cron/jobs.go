package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPruner is the part of the session store the prune job needs.
type SessionPruner interface {
	Prune(maxIdle time.Duration) int
}

// AuditPruner is the part of the delivery audit log the retention job needs.
type AuditPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionPruneJob drops conversations idle for longer than MaxIdle.
type SessionPruneJob struct {
	Store        SessionPruner
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = "*/5 * * * *"
}

var _ Job = (*SessionPruneJob)(nil)

// Name implements Job.
func (j *SessionPruneJob) Name() string { return "session_prune" }

// Schedule implements Job.
func (j *SessionPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run implements Job.
func (j *SessionPruneJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cron: session prune cancelled: %w", err)
	}
	if j.MaxIdle <= 0 {
		return nil
	}
	if pruned := j.Store.Prune(j.MaxIdle); pruned > 0 && j.Logger != nil {
		j.Logger.Info("pruned idle sessions", "count", pruned, "max_idle", j.MaxIdle)
	}
	return nil
}

// AuditRetentionJob deletes delivery audit records older than MaxAge.
type AuditRetentionJob struct {
	Store        AuditPruner
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string           // empty = "0 * * * *"
	Now          func() time.Time // nil = time.Now
}

var _ Job = (*AuditRetentionJob)(nil)

// Name implements Job.
func (j *AuditRetentionJob) Name() string { return "audit_retention" }

// Schedule implements Job.
func (j *AuditRetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run implements Job.
func (j *AuditRetentionJob) Run(ctx context.Context) error {
	if j.MaxAge <= 0 {
		return nil
	}
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	deleted, err := j.Store.DeleteBefore(ctx, now().Add(-j.MaxAge))
	if err != nil {
		return fmt.Errorf("cron: audit retention: %w", err)
	}
	if deleted > 0 && j.Logger != nil {
		j.Logger.Info("deleted expired delivery records", "count", deleted, "max_age", j.MaxAge)
	}
	return nil
}
