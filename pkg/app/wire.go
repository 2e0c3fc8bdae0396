package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gneuro/tgrelay/internal/config"
	"github.com/gneuro/tgrelay/internal/core"
	"github.com/gneuro/tgrelay/internal/cron"
	"github.com/gneuro/tgrelay/internal/reload"
	"github.com/gneuro/tgrelay/internal/security"
	"github.com/gneuro/tgrelay/internal/telemetry"
)

const schedulerStopTimeout = 10 * time.Second

// runtime is a loaded application: the modules named by the config plus
// the process-wide services they share.
type runtime struct {
	app       *core.App
	appCtx    *core.AppContext
	scheduler *cron.Scheduler
	reloader  *reload.Handler
	logger    *slog.Logger
}

// newRuntime registers the shared services, then loads every configured
// module. The services must exist before LoadModules because modules
// resolve them during Provision.
func newRuntime(
	logger *slog.Logger,
	redactor *security.Redactor,
	cfg *config.Config,
	cfgPath string,
	dataDir string,
) (*runtime, error) {
	appCtx := core.NewAppContext(logger, dataDir)

	reg := telemetry.NewRegistry()
	appCtx.RegisterService(telemetry.RegistryService, reg)
	appCtx.RegisterService(security.RedactorService, redactor)

	scheduler := cron.NewScheduler(logger, reg)
	appCtx.RegisterService(cron.ServiceName, scheduler)

	application := core.NewApp(appCtx.WithModuleConfigs(cfg.Modules))
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return nil, err
	}

	// Registered after loading; the gateway looks it up at Start.
	reloader := reload.NewHandler(application, appCtx, cfgPath)
	reloader.Prepare = PrepareConfig
	appCtx.RegisterService(reload.ServiceName, reloader)

	return &runtime{
		app:       application,
		appCtx:    appCtx,
		scheduler: scheduler,
		reloader:  reloader,
		logger:    logger,
	}, nil
}

// start starts the modules, then the job scheduler.
func (rt *runtime) start() error {
	if err := rt.app.Start(); err != nil {
		return err
	}
	if err := rt.scheduler.Start(); err != nil {
		rt.app.Stop()
		return fmt.Errorf("starting scheduler: %w", err)
	}
	return nil
}

func (rt *runtime) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), schedulerStopTimeout)
	defer cancel()
	_ = rt.scheduler.Stop(ctx)
	rt.app.Stop()
	rt.logger.Info("shutdown complete")
}

// Check loads every module named by the config at path without starting
// any of them, and returns the loaded module IDs.
func Check(path, dataDir string, logger *slog.Logger) ([]core.ModuleID, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	redactor := security.NewRedactor()
	rt, err := newRuntime(logger, redactor, cfg, path, dataDir)
	if err != nil {
		return nil, err
	}
	return rt.app.Modules(), nil
}
