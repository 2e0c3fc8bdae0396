package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

// ErrUnknownJob is returned by RunNow for a name that was never registered.
var ErrUnknownJob = fmt.Errorf("cron: unknown job")

// Scheduler executes registered jobs on their cron schedule. A job never
// overlaps with itself: a tick that finds the previous run still in
// progress is skipped.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]Job
	locks   map[string]*sync.Mutex
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewScheduler creates a scheduler. reg may be nil, in which case job
// metrics are not exported.
func NewScheduler(logger *slog.Logger, reg prometheus.Registerer) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		jobs:   make(map[string]Job),
		locks:  make(map[string]*sync.Mutex),
		logger: logger.With("component", "cron"),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if reg != nil {
		s.runs = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "tgrelay",
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job executions by job and result.",
		}, []string{"job", "result"})
		s.duration = promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tgrelay",
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Cron job execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"})
	}
	return s
}

// RegisterJob adds a job. Jobs must be registered before Start.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("cron: cannot register %q after start", j.Name())
	}
	name := j.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	s.jobs[name] = j
	s.locks[name] = &sync.Mutex{}
	return nil
}

// Jobs returns the registered job names in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start parses every schedule and begins executing jobs. Any invalid
// schedule aborts the start.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser))

	for name, j := range s.jobs {
		job := j
		if _, err := c.AddFunc(job.Schedule(), func() { s.run(job) }); err != nil {
			return fmt.Errorf("cron: invalid schedule for job %q: %w", name, err)
		}
	}

	s.cron = c
	s.started = true
	c.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// RunNow executes the named job immediately, outside its schedule. It
// returns false when the job was already running and the call was skipped.
func (s *Scheduler) RunNow(name string) (bool, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	return s.run(job), nil
}

func (s *Scheduler) run(job Job) bool {
	s.mu.Lock()
	lock := s.locks[job.Name()]
	s.mu.Unlock()

	if !lock.TryLock() {
		s.logger.Warn("job still running, skipping tick", "job", job.Name())
		s.observe(job.Name(), "skipped", 0)
		return false
	}
	defer lock.Unlock()

	start := time.Now()
	err := job.Run(s.ctx)
	elapsed := time.Since(start)

	if err != nil {
		s.logger.Error("job failed", "job", job.Name(), "error", err, "duration", elapsed)
		s.observe(job.Name(), "error", elapsed)
		return true
	}
	s.logger.Debug("job completed", "job", job.Name(), "duration", elapsed)
	s.observe(job.Name(), "ok", elapsed)
	return true
}

func (s *Scheduler) observe(job, result string, elapsed time.Duration) {
	if s.runs == nil {
		return
	}
	s.runs.WithLabelValues(job, result).Inc()
	if result != "skipped" {
		s.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	}
}

// Stop cancels in-flight jobs and waits for them to return.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.started = false
	s.mu.Unlock()

	s.cancel()
	if c != nil {
		<-c.Stop().Done()
		s.logger.Info("scheduler stopped")
	}
	return nil
}
