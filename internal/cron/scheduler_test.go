package cron

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	mu       sync.Mutex
	calls    int
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func (j *simpleJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default(), nil)
	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"}); err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestScheduler_RegisterAfterStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	if err := s.RegisterJob(&simpleJob{name: "late", schedule: "* * * * *"}); err == nil {
		t.Fatal("registration after start should fail")
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default(), nil)
	_ = s.RegisterJob(&simpleJob{name: "bad", schedule: "invalid"})

	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default(), nil)
	_ = s.RegisterJob(&simpleJob{name: "noop", schedule: "* * * * *"})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_Jobs(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil)
	_ = s.RegisterJob(&simpleJob{name: "b", schedule: "* * * * *"})
	_ = s.RegisterJob(&simpleJob{name: "a", schedule: "* * * * *"})

	got := strings.Join(s.Jobs(), ",")
	if got != "a,b" {
		t.Errorf("Jobs() = %q, want a,b", got)
	}
}

func TestScheduler_NilLogger(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil, nil)
	if s.logger == nil {
		t.Fatal("logger should default to slog.Default()")
	}
}

func TestScheduler_RunNow(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := NewScheduler(slog.Default(), reg)
	job := &simpleJob{name: "prune", schedule: "0 0 1 1 *"}
	_ = s.RegisterJob(job)

	ran, err := s.RunNow("prune")
	if err != nil || !ran {
		t.Fatalf("RunNow() = %v, %v", ran, err)
	}
	if job.count() != 1 {
		t.Errorf("calls = %d, want 1", job.count())
	}

	if _, err := s.RunNow("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("RunNow(missing) error = %v, want ErrUnknownJob", err)
	}

	want := `
# HELP tgrelay_cron_job_runs_total Cron job executions by job and result.
# TYPE tgrelay_cron_job_runs_total counter
tgrelay_cron_job_runs_total{job="prune",result="ok"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "tgrelay_cron_job_runs_total"); err != nil {
		t.Error(err)
	}
}

func TestScheduler_RunNow_SkipsWhileRunning(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	entered := make(chan struct{})
	s := NewScheduler(slog.Default(), nil)
	_ = s.RegisterJob(&simpleJob{
		name:     "slow",
		schedule: "0 0 1 1 *",
		runFunc: func(context.Context) error {
			close(entered)
			<-release
			return nil
		},
	})

	done := make(chan bool)
	go func() {
		ran, _ := s.RunNow("slow")
		done <- ran
	}()
	<-entered

	ran, err := s.RunNow("slow")
	if err != nil {
		t.Fatalf("RunNow() error: %v", err)
	}
	if ran {
		t.Error("second RunNow should be skipped while the first is running")
	}

	close(release)
	if !<-done {
		t.Error("first RunNow should have run")
	}
}

func TestScheduler_NoParallelExecution(t *testing.T) {
	t.Parallel()

	var concurrent, maxConcurrent atomic.Int32
	s := NewScheduler(slog.Default(), nil)
	_ = s.RegisterJob(&simpleJob{
		name:     "slow",
		schedule: "0 0 1 1 *",
		runFunc: func(context.Context) error {
			c := concurrent.Add(1)
			for {
				old := maxConcurrent.Load()
				if c <= old || maxConcurrent.CompareAndSwap(old, c) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			concurrent.Add(-1)
			return nil
		},
	})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.RunNow("slow")
		}()
	}
	wg.Wait()

	if maxConcurrent.Load() > 1 {
		t.Errorf("max concurrent = %d, want <= 1", maxConcurrent.Load())
	}
}

func TestScheduler_JobError(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := NewScheduler(slog.Default(), reg)
	_ = s.RegisterJob(&simpleJob{
		name:     "failing",
		schedule: "0 0 1 1 *",
		runFunc:  func(context.Context) error { return errors.New("job failed") },
	})

	if ran, err := s.RunNow("failing"); err != nil || !ran {
		t.Fatalf("RunNow() = %v, %v", ran, err)
	}
	if n := testutil.ToFloat64(s.runs.WithLabelValues("failing", "error")); n != 1 {
		t.Errorf("error runs = %v, want 1", n)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default(), nil)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
