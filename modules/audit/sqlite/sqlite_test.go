package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/cron"
	"github.com/gneuro/tgrelay/internal/delivery"
)

func testAppContext(t *testing.T) *core.AppContext {
	t.Helper()
	return core.NewAppContext(slog.New(slog.NewTextHandler(io.Discard, nil)), t.TempDir())
}

func configure(t *testing.T, m *Module, text string) {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if err := m.Configure(node.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}
}

func TestModule_Registered(t *testing.T) {
	t.Parallel()

	info, ok := core.GetModule(ModuleID)
	if !ok {
		t.Fatal("audit.sqlite not registered")
	}
	if _, ok := info.New().(*Module); !ok {
		t.Error("New() should return *Module")
	}
}

func TestModule_Defaults(t *testing.T) {
	t.Parallel()

	m := &Module{}
	configure(t, m, "{}")

	if !m.config.walEnabled() {
		t.Error("WAL should default to on")
	}
	if m.config.BusyTimeout != defaultBusyTimeout {
		t.Errorf("BusyTimeout = %d", m.config.BusyTimeout)
	}
	if m.config.retention() != defaultRetention {
		t.Errorf("retention = %v", m.config.retention())
	}

	configure(t, m, "retention: 0s")
	if m.config.retention() != 0 {
		t.Errorf("explicit zero retention = %v", m.config.retention())
	}
}

func TestModule_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := testAppContext(t)
	sched := cron.NewScheduler(ctx.Logger, nil)
	ctx.RegisterService(cron.ServiceName, sched)

	m := &Module{}
	configure(t, m, "retention: 24h\nretention_schedule: \"*/10 * * * *\"")
	if err := m.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if m.config.Path != filepath.Join(ctx.DataDir, defaultDBFile) {
		t.Errorf("Path = %q", m.config.Path)
	}

	rec, ok := core.Service[delivery.Recorder](ctx, delivery.RecorderService)
	if !ok {
		t.Fatal("recorder service not registered")
	}
	if _, ok := rec.(delivery.History); !ok {
		t.Error("recorder should also serve delivery history")
	}

	if jobs := sched.Jobs(); len(jobs) != 1 || jobs[0] != "audit_retention" {
		t.Errorf("jobs = %v", jobs)
	}

	old := delivery.Report{ChatID: 1, StartedAt: time.Now().Add(-48 * time.Hour)}
	fresh := delivery.Report{ChatID: 2, StartedAt: time.Now()}
	for _, r := range []delivery.Report{old, fresh} {
		if err := rec.RecordDelivery(context.Background(), r); err != nil {
			t.Fatalf("RecordDelivery: %v", err)
		}
	}

	ran, err := sched.RunNow("audit_retention")
	if err != nil || !ran {
		t.Fatalf("RunNow = %v, %v", ran, err)
	}

	got, err := m.Store().Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].ChatID != 2 {
		t.Errorf("after retention = %+v", got)
	}
}

func TestModule_NoRetentionJob(t *testing.T) {
	t.Parallel()

	ctx := testAppContext(t)
	sched := cron.NewScheduler(ctx.Logger, nil)
	ctx.RegisterService(cron.ServiceName, sched)

	m := &Module{}
	configure(t, m, "retention: 0s")
	if err := m.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	if jobs := sched.Jobs(); len(jobs) != 0 {
		t.Errorf("jobs = %v, want none", jobs)
	}
}

func TestModule_ValidateRejectsNegative(t *testing.T) {
	t.Parallel()

	tests := []string{"busy_timeout: -1", "retention: -1h"}
	for _, text := range tests {
		m := &Module{}
		configure(t, m, text)
		if err := m.Provision(testAppContext(t)); err != nil {
			t.Fatalf("%s: Provision: %v", text, err)
		}
		if err := m.Validate(); err == nil {
			t.Errorf("%s: Validate accepted a negative value", text)
		}
		_ = m.Stop(context.Background())
	}
}

func TestModule_StopWithoutProvision(t *testing.T) {
	t.Parallel()

	m := &Module{}
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
