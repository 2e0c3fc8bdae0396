// Package cron runs periodic maintenance for the relay: idle session
// pruning and delivery audit retention.
package cron

import "context"

// Job is a periodic background task.
type Job interface {
	// Name identifies the job in logs and metrics. Names are unique per scheduler.
	Name() string

	// Schedule returns a 5-field cron expression (e.g. "*/5 * * * *").
	Schedule() string

	// Run executes one tick. Implementations should honour ctx cancellation.
	Run(ctx context.Context) error
}

// ServiceName is the service registry key of the process-wide Scheduler.
const ServiceName = "cron.scheduler"
