package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rendis/deskbot/internal/engine"
	"github.com/rendis/deskbot/internal/job"
	"github.com/rendis/deskbot/internal/scheduler"
	"github.com/rendis/deskbot/pkg/schema"
)

func runSchedule(args []string) error {
	cfg := loadConfig()
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	configPath := fs.String("config", cfg.JobFile, "job file")
	cronExpr := fs.String("cron", "", "cron expression (default: settings.schedule)")
	now := fs.Bool("now", false, "also run once immediately")
	if err := fs.Parse(args); err != nil {
		return err
	}

	expr := strings.TrimSpace(*cronExpr)
	if expr == "" {
		j, err := job.Load(*configPath)
		if err != nil {
			return err
		}
		expr = strings.TrimSpace(j.Definition.Settings.Schedule)
	}
	if expr == "" {
		return schema.NewError(schema.ErrCodeConfiguration, "no schedule: set settings.schedule or pass --cron")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{JobPath: *configPath, History: true})
	if err != nil {
		return err
	}
	defer a.close()

	// A fail-safe abort ends the whole schedule, not just the run.
	var halted atomic.Bool
	runner := scheduler.JobRunnerFunc(func(ctx context.Context, id string) error {
		err := a.runScheduled(ctx, id)
		if errors.Is(err, scheduler.ErrHalt) {
			halted.Store(true)
			stop()
		}
		return err
	})

	sched := scheduler.NewScheduler(runner, a.logger)
	entry, err := sched.Add(*configPath, expr)
	if err != nil {
		return err
	}
	a.logger.Info("job scheduled", "job", entry.ID, "cron", entry.Expression, "next_run", entry.NextRunAt)

	if *now {
		if err := sched.RunNow(ctx, entry.ID); err != nil {
			a.logger.Warn("immediate run failed", "error", err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	if err := sched.Stop(); err != nil {
		return err
	}
	if halted.Load() {
		colorYellow.Fprintln(os.Stderr, "Fail-safe triggered, schedule stopped.")
		return errAborted
	}
	return nil
}

// runScheduled runs one scheduled job. The job ID is the job file path.
func (a *app) runScheduled(ctx context.Context, configPath string) error {
	res, err := a.service.Run(ctx, job.RunRequest{ConfigPath: configPath})
	if err != nil {
		return err
	}
	printSummary(os.Stdout, res)
	return scheduledOutcome(res)
}

// scheduledOutcome maps a finished run to the error the scheduler records.
func scheduledOutcome(res *engine.RunResult) error {
	switch {
	case res.Status == schema.RunStatusCompleted:
		return nil
	case res.FailSafe():
		return fmt.Errorf("%w: %w", scheduler.ErrHalt, res.Error)
	case res.Error != nil:
		return res.Error
	default:
		return errAborted
	}
}
