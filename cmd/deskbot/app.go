package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rendis/deskbot/internal/actions"
	"github.com/rendis/deskbot/internal/driver"
	"github.com/rendis/deskbot/internal/driver/robot"
	"github.com/rendis/deskbot/internal/job"
	"github.com/rendis/deskbot/internal/logging"
	"github.com/rendis/deskbot/internal/store"
	"github.com/rendis/deskbot/pkg/schema"
)

// app wires the job service to the local desktop and the history store.
type app struct {
	cfg     Config
	logger  *slog.Logger
	store   *store.LibSQLStore // nil when history is off
	events  *store.EventLog
	service *job.Service
}

type appOptions struct {
	// JobPath decides where run logs go when no base dir is configured.
	JobPath string
	History bool
}

func newApp(ctx context.Context, cfg Config, opts appOptions) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.New(logging.Options{Level: cfg.LogLevel, Console: os.Stderr}).Logger,
	}

	if opts.History && cfg.History {
		st, err := openStore(ctx, cfg.DBPath)
		if err != nil {
			a.logger.Warn("run history disabled", "db", cfg.DBPath, "error", err)
		} else {
			a.store = st
			a.events = store.NewEventLog(st)
		}
	}

	baseDir := cfg.logBaseDir(opts.JobPath)
	deps := job.ServiceDeps{
		NewDriver: a.newDriver,
		Registry:  actions.DefaultRegistry(),
		Logger:    a.logger,
		OpenLog: func() *logging.Logger {
			return logging.New(logging.Options{Level: cfg.LogLevel, Console: os.Stderr, BaseDir: baseDir})
		},
	}
	if a.store != nil {
		deps.Store = a.store
		deps.Events = a.events
	}

	svc, err := job.NewService(deps)
	if err != nil {
		a.close()
		return nil, err
	}
	a.service = svc
	return a, nil
}

func (a *app) newDriver(settings schema.Settings, logger *slog.Logger) driver.Driver {
	return robot.New(robot.Options{
		Pause:    schema.DurationOf(settings.PauseSeconds()),
		FailSafe: settings.FailSafeEnabled(),
		Corner:   a.cfg.Corner,
		Logger:   logger,
	})
}

// history returns the history query service, or an error when no store is open.
func (a *app) history() (*job.History, error) {
	if a.store == nil {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "run history is disabled")
	}
	return job.NewHistory(a.store, a.events), nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close history store", "error", err)
		}
	}
}

func openStore(ctx context.Context, path string) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}
