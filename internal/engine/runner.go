package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/deskbot/internal/actions"
	"github.com/rendis/deskbot/internal/driver"
	"github.com/rendis/deskbot/internal/expressions"
	"github.com/rendis/deskbot/internal/logging"
	"github.com/rendis/deskbot/internal/source"
	"github.com/rendis/deskbot/internal/store"
	"github.com/rendis/deskbot/pkg/schema"
)

// Stats counts record outcomes for one run.
type Stats struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Total returns the number of records that reached an outcome.
func (s Stats) Total() int { return s.Success + s.Failed + s.Skipped }

func (s *Stats) add(status schema.RecordStatus) {
	switch status {
	case schema.RecordStatusSuccess:
		s.Success++
	case schema.RecordStatusFailed:
		s.Failed++
	case schema.RecordStatusSkipped:
		s.Skipped++
	}
}

// RunResult is returned by Run with the run outcome.
type RunResult struct {
	RunID       string               `json:"run_id"`
	Status      schema.RunStatus     `json:"status"`
	Stats       Stats                `json:"stats"`
	Limit       int                  `json:"limit"`
	Records     int                  `json:"records"` // records loaded before the limit
	Error       *schema.DeskbotError `json:"error,omitempty"`
	LogPath     string               `json:"log_path,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at"`
}

// FailSafe reports whether the operator stopped the run with the fail-safe.
func (r *RunResult) FailSafe() bool {
	return r.Status == schema.RunStatusAborted && r.Error != nil && errors.Is(r.Error, driver.ErrFailSafe)
}

// RunnerConfig holds the dependencies of a Runner.
type RunnerConfig struct {
	Steps   []actions.Action
	Source  source.Source
	Driver  driver.Driver
	Columns source.Columns

	// Filter is optional. Records it rejects are counted as skipped.
	Filter *expressions.Filter

	// Store is optional. When set, runs, record results and events are persisted.
	Store store.Store
	// Events overrides where events go. Defaults to Store.
	Events EventAppender

	// OnStatus is optional. It is called after every status change.
	OnStatus func(from, to schema.RunStatus)

	Logger    *slog.Logger
	Countdown int // seconds; negative means none
	JobPath   string
	LogPath   string

	NewID func() string
	Now   func() time.Time
}

// Runner drives the step list over every record of its source.
// Runs are serialized: concurrent calls to Run wait for each other.
type Runner struct {
	cfg    RunnerConfig
	exec   *StepExecutor
	fsm    *RunFSM
	logger *slog.Logger

	mu sync.Mutex
}

// NewRunner validates cfg and builds a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Source == nil {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "record source is not configured")
	}
	if cfg.Driver == nil {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "input driver is not configured")
	}
	if len(cfg.Steps) == 0 {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "no steps configured")
	}
	if err := cfg.Columns.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Countdown < 0 {
		cfg.Countdown = 0
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Events == nil && cfg.Store != nil {
		cfg.Events = cfg.Store
	}

	r := &Runner{
		cfg:    cfg,
		exec:   NewStepExecutor(cfg.Driver, cfg.Columns, cfg.Logger),
		logger: cfg.Logger,
	}
	var appender EventAppender
	if cfg.Events != nil {
		appender = bestEffort{inner: cfg.Events, logger: cfg.Logger}
	}
	r.fsm = NewRunFSM(appender)
	if cfg.OnStatus != nil {
		for from, next := range ValidRunTransitions {
			for _, to := range next {
				r.fsm.OnAfter(from, to, func(f, t string) error {
					cfg.OnStatus(schema.RunStatus(f), schema.RunStatus(t))
					return nil
				})
			}
		}
	}
	return r, nil
}

// Run executes the step list for up to limit records (0 means all).
//
// Configuration and load errors are returned with a failed result. A
// fail-safe trigger or ctx cancellation ends the run with status aborted and
// a nil error. Step failures only affect the record they occur in.
func (r *Runner) Run(ctx context.Context, limit int) (*RunResult, error) {
	if limit < 0 {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "limit must be >= 0, got %d", limit)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res := &RunResult{
		RunID:     r.cfg.NewID(),
		Status:    schema.RunStatusIdle,
		Limit:     limit,
		LogPath:   r.cfg.LogPath,
		StartedAt: r.cfg.Now(),
	}
	ctx = logging.WithRunID(ctx, res.RunID)

	r.persistCreate(ctx, res)

	// idle -> counting_down
	if err := r.transition(ctx, res, schema.RunStatusCountingDown, nil); err != nil {
		return r.finish(ctx, res), err
	}
	if abort := r.countdown(ctx); abort != nil {
		return r.abort(ctx, res, abort), nil
	}

	// counting_down -> processing, or failed on load error
	records, err := r.cfg.Source.Load(ctx)
	if err != nil {
		res.Error = asDeskbotError(err, schema.ErrCodeLoad)
		r.logger.ErrorContext(ctx, "load records failed", "error", err)
		_ = r.transition(ctx, res, schema.RunStatusFailed, errorPayload(res.Error))
		return r.finish(ctx, res), err
	}
	res.Records = len(records)
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	if err := r.transition(ctx, res, schema.RunStatusProcessing, mustJSON(map[string]any{
		"records": res.Records, "limit": limit,
	})); err != nil {
		return r.finish(ctx, res), err
	}
	r.logger.InfoContext(ctx, "processing records", "records", len(records), "loaded", res.Records, "limit", limit)

	for _, rec := range records {
		status, abort := r.processRecord(ctx, rec)
		res.Stats.add(status)
		if abort != nil {
			return r.abort(ctx, res, abort), nil
		}
	}

	// processing -> completed
	_ = r.transition(ctx, res, schema.RunStatusCompleted, statsPayload(res.Stats))
	return r.finish(ctx, res), nil
}

// countdown logs one line per second. It returns a non-nil error when the
// fail-safe fires or ctx is done.
func (r *Runner) countdown(ctx context.Context) error {
	for remaining := r.cfg.Countdown; remaining > 0; remaining-- {
		if err := r.exec.checkAbort(ctx); err != nil {
			return err
		}
		r.logger.InfoContext(ctx, fmt.Sprintf("starting in %d...", remaining),
			"remaining", remaining, "hint", "move the pointer to the top-left corner to abort")
		r.cfg.Driver.Sleep(time.Second)
	}
	return r.exec.checkAbort(ctx)
}

// processRecord runs every step for one record. A non-nil error means the
// run must abort; the record is then counted as failed.
func (r *Runner) processRecord(ctx context.Context, rec source.Record) (status schema.RecordStatus, abort error) {
	ctx = logging.WithRecord(ctx, rec.Index)
	started := time.Now()
	code := fmt.Sprint(valueOrEmpty(rec.Get(r.cfg.Columns.Code)))

	var (
		reason *schema.DeskbotError
		step   string
	)
	defer func() {
		if p := recover(); p != nil {
			status = schema.RecordStatusFailed
			reason = schema.NewErrorf(schema.ErrCodeUnexpected, "panic: %v", p).WithStep(step)
			r.logger.ErrorContext(ctx, "record panicked", "panic", p)
		}
		r.recordOutcome(ctx, rec.Index, code, status, step, reason, time.Since(started))
	}()

	r.logger.InfoContext(ctx, "processing record", "code", code, "quantity", rec.Get(r.cfg.Columns.Quantity))

	if r.cfg.Filter != nil {
		ok, err := r.cfg.Filter.Match(ctx, expressions.RecordScope{
			Index:    rec.Index,
			Fields:   rec.Fields,
			Code:     rec.Get(r.cfg.Columns.Code),
			Quantity: rec.Get(r.cfg.Columns.Quantity),
		})
		if err != nil {
			reason = asDeskbotError(err, schema.ErrCodeExpression)
			r.logger.ErrorContext(ctx, "filter failed", "error", err)
			return schema.RecordStatusFailed, nil
		}
		if !ok {
			r.logger.InfoContext(ctx, "record skipped by filter", "filter", r.cfg.Filter.Expression())
			return schema.RecordStatusSkipped, nil
		}
	}

	for _, a := range r.cfg.Steps {
		step = a.Label()
		out, err := r.exec.Execute(logging.WithStep(ctx, step), a, rec)
		if err != nil {
			reason = abortError(err)
			r.logger.WarnContext(ctx, "run aborted during record", "step", step, "error", err)
			return schema.RecordStatusFailed, err
		}
		if !out.OK() {
			reason = out.Err
			r.emit(ctx, &store.Event{Record: rec.Index, Step: step, Type: schema.EventStepFailed, Payload: errorPayload(out.Err)})
			return schema.RecordStatusFailed, nil
		}
	}
	step = ""
	r.logger.InfoContext(ctx, "record done", "code", code)
	return schema.RecordStatusSuccess, nil
}

func (r *Runner) abort(ctx context.Context, res *RunResult, cause error) *RunResult {
	res.Error = abortError(cause)
	r.logger.WarnContext(ctx, "run aborted", "reason", res.Error.Message)
	_ = r.transition(ctx, res, schema.RunStatusAborted, mustJSON(map[string]any{
		"reason": res.Error.Message,
		"stats":  res.Stats,
	}))
	return r.finish(ctx, res)
}

func (r *Runner) finish(ctx context.Context, res *RunResult) *RunResult {
	res.CompletedAt = r.cfg.Now()
	r.logger.InfoContext(ctx, "run finished",
		"status", res.Status,
		"success", res.Stats.Success,
		"failed", res.Stats.Failed,
		"skipped", res.Stats.Skipped,
		"duration", res.CompletedAt.Sub(res.StartedAt).String(),
	)
	r.persistFinish(ctx, res)
	return res
}

func (r *Runner) transition(ctx context.Context, res *RunResult, to schema.RunStatus, payload json.RawMessage) error {
	if err := r.fsm.Transition(context.WithoutCancel(ctx), res.RunID, res.Status, to, payload); err != nil {
		r.logger.ErrorContext(ctx, "run transition failed", "error", err)
		return err
	}
	res.Status = to
	r.persistStatus(ctx, res)
	return nil
}

// --- persistence ---
//
// History is best effort: store errors are logged and never stop a run.
// Writes use an uncancelled context so an aborted run is still recorded.

func (r *Runner) persistCreate(ctx context.Context, res *RunResult) {
	if r.cfg.Store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	started := res.StartedAt
	err := r.cfg.Store.CreateRun(ctx, &store.Run{
		ID:        res.RunID,
		JobPath:   r.cfg.JobPath,
		Status:    res.Status,
		Limit:     res.Limit,
		CreatedAt: started,
		StartedAt: &started,
	})
	if err != nil {
		r.logger.WarnContext(ctx, "persist run failed", "error", err)
	}
}

func (r *Runner) persistStatus(ctx context.Context, res *RunResult) {
	if r.cfg.Store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	status := res.Status
	if err := r.cfg.Store.UpdateRun(ctx, res.RunID, store.RunUpdate{Status: &status}); err != nil {
		r.logger.WarnContext(ctx, "persist run status failed", "error", err)
	}
}

func (r *Runner) persistFinish(ctx context.Context, res *RunResult) {
	if r.cfg.Store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	completed := res.CompletedAt
	success, failed, skipped := res.Stats.Success, res.Stats.Failed, res.Stats.Skipped
	update := store.RunUpdate{
		Success:     &success,
		Failed:      &failed,
		Skipped:     &skipped,
		CompletedAt: &completed,
	}
	if res.Error != nil {
		update.Error = errorPayload(res.Error)
	}
	if err := r.cfg.Store.UpdateRun(ctx, res.RunID, update); err != nil {
		r.logger.WarnContext(ctx, "persist run result failed", "error", err)
	}
}

func (r *Runner) recordOutcome(ctx context.Context, index int, code string, status schema.RecordStatus, step string, reason *schema.DeskbotError, elapsed time.Duration) {
	ctx = context.WithoutCancel(ctx)
	var eventType string
	switch status {
	case schema.RecordStatusSuccess:
		eventType = schema.EventRecordSucceeded
	case schema.RecordStatusSkipped:
		eventType = schema.EventRecordSkipped
	default:
		eventType = schema.EventRecordFailed
	}
	payload := mustJSON(map[string]any{"code": code})
	if reason != nil {
		payload = mustJSON(map[string]any{"code": code, "error": reason})
	}
	r.emit(ctx, &store.Event{Record: index, Step: step, Type: eventType, Payload: payload})

	if r.cfg.Store == nil {
		return
	}
	var errJSON json.RawMessage
	if reason != nil {
		errJSON = errorPayload(reason)
	}
	err := r.cfg.Store.RecordResult(ctx, &store.RecordResult{
		RunID:      logging.RunID(ctx),
		Index:      index,
		Code:       code,
		Status:     status,
		Step:       step,
		Error:      errJSON,
		DurationMs: elapsed.Milliseconds(),
	})
	if err != nil {
		r.logger.WarnContext(ctx, "persist record result failed", "error", err)
	}
}

func (r *Runner) emit(ctx context.Context, e *store.Event) {
	if r.cfg.Events == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	e.RunID = logging.RunID(ctx)
	if err := r.cfg.Events.AppendEvent(ctx, e); err != nil {
		r.logger.WarnContext(ctx, "append event failed", "type", e.Type, "error", err)
	}
}

// bestEffort logs appender errors instead of returning them.
type bestEffort struct {
	inner  EventAppender
	logger *slog.Logger
}

func (b bestEffort) AppendEvent(ctx context.Context, e *store.Event) error {
	if err := b.inner.AppendEvent(ctx, e); err != nil {
		b.logger.WarnContext(ctx, "append event failed", "type", e.Type, "error", err)
	}
	return nil
}

// --- helpers ---

func abortError(err error) *schema.DeskbotError {
	var dbErr *schema.DeskbotError
	if errors.As(err, &dbErr) && dbErr.Code == schema.ErrCodeAborted {
		return dbErr
	}
	return schema.NewError(schema.ErrCodeAborted, "run cancelled").WithCause(err)
}

func asDeskbotError(err error, fallback string) *schema.DeskbotError {
	var dbErr *schema.DeskbotError
	if errors.As(err, &dbErr) {
		return dbErr
	}
	return schema.NewError(fallback, err.Error()).WithCause(err)
}

func errorPayload(err *schema.DeskbotError) json.RawMessage {
	if err == nil {
		return nil
	}
	return mustJSON(err)
}

func statsPayload(s Stats) json.RawMessage {
	return mustJSON(s)
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func valueOrEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
