package job

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rendis/deskbot/internal/actions"
	"github.com/rendis/deskbot/internal/driver"
	"github.com/rendis/deskbot/internal/engine"
	"github.com/rendis/deskbot/internal/logging"
	"github.com/rendis/deskbot/internal/store"
	"github.com/rendis/deskbot/internal/validation"
	"github.com/rendis/deskbot/pkg/schema"
)

// DriverFactory builds the input driver for a job's settings.
type DriverFactory func(settings schema.Settings, logger *slog.Logger) driver.Driver

// LogFactory opens the logger for one run.
type LogFactory func() *logging.Logger

// ServiceDeps holds the dependencies of a Service.
type ServiceDeps struct {
	NewDriver DriverFactory
	// Store is optional. When set, run history is recorded.
	Store store.Store
	// Events overrides where run events go. Defaults to Store.
	Events   engine.EventAppender
	Registry *actions.Registry
	// OpenLog is optional. Defaults to Logger with no log file.
	OpenLog LogFactory
	Logger  *slog.Logger
}

// Service loads job files and runs them. It is shared by the CLI, the
// scheduler and the MCP server.
type Service struct {
	deps      ServiceDeps
	validator *validation.JobValidator
}

// RunRequest describes one run.
type RunRequest struct {
	ConfigPath string
	Limit      int
	// Events receives run events in addition to the store.
	Events engine.EventAppender
	// OnStatus is called after every run status change.
	OnStatus func(from, to schema.RunStatus)
}

// NewService creates a Service.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.NewDriver == nil {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "driver factory is not configured")
	}
	if deps.Registry == nil {
		deps.Registry = actions.DefaultRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	v, err := validation.NewJobValidator(deps.Registry)
	if err != nil {
		return nil, err
	}
	return &Service{deps: deps, validator: v}, nil
}

// Validator returns the job validator.
func (s *Service) Validator() *validation.JobValidator { return s.validator }

// Actions lists the step kinds job files can use.
func (s *Service) Actions() []actions.Info { return s.deps.Registry.List() }

// Validate loads a job file and checks it. Load errors are returned as errors,
// problems in the file as the result.
func (s *Service) Validate(path string) (*schema.ValidationResult, error) {
	j, err := Load(path)
	if err != nil {
		var dbErr *schema.DeskbotError
		if errors.As(err, &dbErr) && dbErr.Code == schema.ErrCodeConfiguration {
			r := &schema.ValidationResult{}
			r.AddError("/", schema.ErrCodeValidation, dbErr.Error())
			return r, nil
		}
		return nil, err
	}
	return s.validator.ValidateDocument(j.Raw), nil
}

// Run loads the job file and runs it. Configuration errors are returned
// before anything is sent to the desktop.
func (s *Service) Run(ctx context.Context, req RunRequest) (*engine.RunResult, error) {
	j, err := Load(req.ConfigPath)
	if err != nil {
		return nil, err
	}

	log := s.openLog()
	defer log.Close()

	// Validate the file as written so Run and Validate agree on it.
	result := s.validator.ValidateDocument(j.Raw)
	for _, w := range result.Warnings {
		log.WarnContext(ctx, "job file warning", "path", w.Path, "code", w.Code, "message", w.Message)
	}
	if err := result.ToError(); err != nil {
		log.ErrorContext(ctx, "job file invalid", "error", err)
		return nil, err
	}

	filter, err := j.Filter()
	if err != nil {
		return nil, err
	}

	settings := j.Definition.Settings
	cfg := engine.RunnerConfig{
		Steps:     j.Steps(s.deps.Registry),
		Source:    j.Source(),
		Driver:    s.deps.NewDriver(settings, log.Logger),
		Columns:   j.Columns(),
		Filter:    filter,
		Logger:    log.Logger,
		Countdown: settings.CountdownSeconds(),
		JobPath:   j.Path,
		LogPath:   log.Path,
		OnStatus:  req.OnStatus,
	}
	if s.deps.Store != nil {
		cfg.Store = s.deps.Store
		cfg.Events = s.deps.Store
	}
	if s.deps.Events != nil {
		cfg.Events = s.deps.Events
	}
	if req.Events != nil {
		cfg.Events = teeAppender{cfg.Events, req.Events}
	}

	runner, err := engine.NewRunner(cfg)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "job loaded",
		"job", j.Path,
		"data", j.DataPath(),
		"steps", len(cfg.Steps),
		"failsafe", settings.FailSafeEnabled(),
	)
	return runner.Run(ctx, req.Limit)
}

func (s *Service) openLog() *logging.Logger {
	if s.deps.OpenLog != nil {
		if l := s.deps.OpenLog(); l != nil {
			return l
		}
	}
	return &logging.Logger{Logger: s.deps.Logger}
}

// teeAppender sends each event to every non-nil appender. The first error is
// returned after all have been tried.
type teeAppender []engine.EventAppender

func (t teeAppender) AppendEvent(ctx context.Context, e *store.Event) error {
	var first error
	for _, a := range t {
		if a == nil {
			continue
		}
		if err := a.AppendEvent(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
