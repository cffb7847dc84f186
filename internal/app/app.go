// Package app is the composition root. It builds adapters from settings and
// wires them into the core services so the CLI stays free of construction code.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/dirsync/internal/adapters/driven/auth"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/config/file"
	landingfile "github.com/custodia-labs/dirsync/internal/adapters/driven/landing/file"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/probe"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/dirsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/dirsync/internal/connectors/factory"
	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/core/services"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Options control how the application is assembled.
type Options struct {
	// ConfigDir holds config.toml. Empty means ~/.dirsync.
	ConfigDir string

	// DryRun keeps landing, users, changes and runs in memory.
	DryRun bool

	// Version is reported by the post-run probe client.
	Version string
}

// App holds the wired services.
type App struct {
	Config    *file.ConfigStore
	Settings  *services.SettingsService
	Runs      *services.RunCoordinator
	History   *services.RunHistoryService
	Scheduler *services.Scheduler

	closers []func() error
}

// stores groups the persistence ports one backend serves.
type stores struct {
	users     driven.UserStore
	changes   driven.ChangeLogStore
	runs      driven.RunStore
	scheduler driven.SchedulerStore
	close     func() error
}

// Build loads configuration and wires every adapter into the core services.
func Build(ctx context.Context, opts Options) (*App, error) {
	// 1. Configuration
	cfg, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	settingsService := services.NewSettingsService(cfg)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", cfg.Path(), err)
	}

	a := &App{Config: cfg, Settings: settingsService}

	// 2. Persistence
	st, err := openStores(ctx, settings.Store, opts.DryRun)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.close)

	landing, err := openLanding(settings.Landing, opts.DryRun)
	if err != nil {
		a.Close() //nolint:errcheck // already failing
		return nil, err
	}

	// 3. Source access
	tokens, err := auth.NewTokenProvider(settings.Auth)
	if err != nil {
		a.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("configuring auth: %w", err)
	}

	var prober driven.Prober
	if settings.ProbeEndpoint != "" {
		prober = probe.NewMCPProber(opts.Version, nil)
	}

	// 4. Core services
	a.Runs = services.NewRunCoordinator(*settings, factory.New(tokens), landing,
		st.users, st.changes, st.runs, prober)
	a.History = services.NewRunHistoryService(st.runs, st.changes)
	a.Scheduler = services.NewScheduler(settings.Scheduler, st.scheduler, a.Runs)

	logger.Debug("wired %s source, %s store (dry run: %v)", settings.Source.Type, settings.Store.Driver, opts.DryRun)
	return a, nil
}

// Reload re-reads the configuration and applies it to subsequent runs and the scheduler.
// Source credentials and the store backend are fixed for the life of the process.
func (a *App) Reload(ctx context.Context) error {
	if err := a.Settings.Reload(); err != nil {
		return fmt.Errorf("reloading config: %w", err)
	}
	settings, err := a.Settings.Get()
	if err != nil {
		return fmt.Errorf("invalid configuration in %s: %w", a.Config.Path(), err)
	}
	a.Runs.UpdateSettings(*settings)
	if err := a.Scheduler.UpdateConfig(ctx, settings.Scheduler); err != nil {
		return fmt.Errorf("updating scheduler: %w", err)
	}
	logger.Info("configuration reloaded from %s", a.Config.Path())
	return nil
}

// Watch reloads the configuration whenever the file changes. It blocks until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	return a.Config.Watch(ctx, func() {
		if err := a.Reload(ctx); err != nil {
			logger.Warn("keeping previous configuration: %v", err)
		}
	})
}

// Close waits for background runs and releases every backend.
func (a *App) Close() error {
	if a.Runs != nil {
		a.Runs.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openStores(ctx context.Context, cfg domain.StoreSettings, dryRun bool) (*stores, error) {
	if dryRun || cfg.Driver == domain.StoreMemory {
		return &stores{
			users:     memory.NewUserStore(),
			changes:   memory.NewChangeLogStore(),
			runs:      memory.NewRunStore(),
			scheduler: memory.NewSchedulerStore(),
			close:     func() error { return nil },
		}, nil
	}

	switch cfg.Driver {
	case domain.StorePostgres:
		pg, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return &stores{
			users:     pg.UserStore(),
			changes:   pg.ChangeLogStore(),
			runs:      pg.RunStore(),
			scheduler: pg.SchedulerStore(),
			close:     pg.Close,
		}, nil
	case domain.StoreSQLite:
		db, err := sqlite.NewStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return &stores{
			users:     db.UserStore(),
			changes:   db.ChangeLogStore(),
			runs:      db.RunStore(),
			scheduler: db.SchedulerStore(),
			close:     db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("%w: store driver %q", domain.ErrUnsupportedType, cfg.Driver)
	}
}

func openLanding(cfg domain.LandingSettings, dryRun bool) (driven.AppendTarget, error) {
	if dryRun {
		return memory.NewAppendTarget(), nil
	}
	dir := cfg.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".dirsync", "landing")
	}
	target, err := landingfile.NewTarget(dir)
	if err != nil {
		return nil, fmt.Errorf("opening landing directory: %w", err)
	}
	return target, nil
}
