// Package sqlite implements the audit.sqlite module: a persistent log of
// delivery reports backed by modernc.org/sqlite (pure Go, no CGO) in WAL
// mode. It serves the admin API and is pruned by a cron job.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gneuro/tgrelay/internal/config"
	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/cron"
	"github.com/gneuro/tgrelay/internal/delivery"
)

// ModuleID is the audit module identifier.
const ModuleID = "audit.sqlite"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module is the audit.sqlite module.
type Module struct {
	config Config
	logger *slog.Logger
	store  *Store
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. It opens the database, publishes
// the store as the delivery recorder, and schedules retention cleanup.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	store, err := Open(context.TODO(), m.config.Path, m.config.options())
	if err != nil {
		return err
	}
	m.store = store
	ctx.RegisterService(delivery.RecorderService, store)

	if sched, ok := core.Service[*cron.Scheduler](ctx, cron.ServiceName); ok && m.config.retention() > 0 {
		if err := sched.RegisterJob(&cron.AuditRetentionJob{
			Store:        store,
			MaxAge:       m.config.retention(),
			Logger:       m.logger,
			ScheduleExpr: m.config.RetentionSchedule,
		}); err != nil {
			_ = store.Close()
			return fmt.Errorf("sqlite: %w", err)
		}
	}

	m.logger.Info("sqlite audit module provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
		"retention", m.config.retention(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := config.ValidateStruct(ModuleID, &m.config); err != nil {
		return err
	}
	if m.config.retention() < 0 {
		return errors.New("sqlite: retention must be non-negative")
	}
	if err := m.store.Ping(context.TODO()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.store == nil {
		return nil
	}
	m.logger.Info("sqlite audit module stopping")
	return m.store.Close()
}

// Store returns the underlying audit store.
func (m *Module) Store() *Store {
	return m.store
}
