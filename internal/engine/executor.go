package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rendis/deskbot/internal/actions"
	"github.com/rendis/deskbot/internal/driver"
	"github.com/rendis/deskbot/internal/expressions"
	"github.com/rendis/deskbot/internal/source"
	"github.com/rendis/deskbot/pkg/schema"
)

// ClearFirstDelay separates select-all from the paste in a type_text step
// with clear_first set.
const ClearFirstDelay = 100 * time.Millisecond

// Outcome is the result of one step. A nil Err means the step succeeded.
type Outcome struct {
	Err *schema.DeskbotError
}

// OK reports whether the step succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

func failed(err *schema.DeskbotError) Outcome { return Outcome{Err: err} }

// StepExecutor applies one action to the desktop for one record.
type StepExecutor struct {
	driver  driver.Driver
	columns source.Columns
	logger  *slog.Logger
}

// NewStepExecutor creates a StepExecutor.
func NewStepExecutor(d driver.Driver, cols source.Columns, logger *slog.Logger) *StepExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &StepExecutor{driver: d, columns: cols, logger: logger}
}

// Execute performs a and reports its Outcome. The returned error is non-nil
// only when the run must abort: the fail-safe fired or ctx is done.
// Step failures are reported through the Outcome, never the error.
func (e *StepExecutor) Execute(ctx context.Context, a actions.Action, rec source.Record) (Outcome, error) {
	if err := e.checkAbort(ctx); err != nil {
		return Outcome{}, err
	}

	var err error
	switch act := a.(type) {
	case actions.Click:
		x, y, ok := act.Point()
		if !ok {
			reason := schema.NewError(schema.ErrCodeMissingCoordinates, "click step has no coordinates").
				WithStep(act.Label()).
				WithDetails(map[string]any{"x_set": act.X != nil, "y_set": act.Y != nil})
			e.logger.ErrorContext(ctx, "step failed", "error", reason)
			return failed(reason), nil
		}
		err = e.driver.MoveClick(x, y, act.Double)

	case actions.TypeText:
		text := expressions.Substitute(act.Template, rec.Fields, e.columns.Code, e.columns.Quantity)
		err = e.typeText(text, act.ClearFirst)

	case actions.PressKey:
		err = e.pressKey(act.KeySpec)

	case actions.Wait:
		e.driver.Sleep(act.Duration)

	case actions.ClearInput:
		if err = e.selectAll(); err == nil {
			err = e.driver.PressKey("delete")
		}

	case actions.Unknown:
		reason := schema.NewErrorf(schema.ErrCodeUnknownAction, "unknown action %q", act.Type).WithStep(act.Label())
		e.logger.WarnContext(ctx, "unknown action", "action", act.Type)
		return failed(reason), nil

	default:
		reason := schema.NewErrorf(schema.ErrCodeUnknownAction, "unsupported action %T", a)
		if a != nil {
			reason = reason.WithStep(a.Label())
		}
		e.logger.WarnContext(ctx, "unsupported action", "type", reason.Message)
		return failed(reason), nil
	}

	if err != nil {
		if errors.Is(err, driver.ErrFailSafe) {
			return Outcome{}, err
		}
		reason := schema.NewErrorf(schema.ErrCodeDriver, "%s: %s", a.Kind(), err.Error()).
			WithStep(a.Label()).
			WithCause(err)
		e.logger.ErrorContext(ctx, "step failed", "error", reason)
		return failed(reason), nil
	}

	if d := a.Settle(); d > 0 {
		e.driver.Sleep(d)
	}
	return Outcome{}, nil
}

func (e *StepExecutor) checkAbort(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.driver.FailSafeTriggered() {
		return driver.ErrFailSafe
	}
	return nil
}

func (e *StepExecutor) typeText(text string, clearFirst bool) error {
	if clearFirst {
		if err := e.selectAll(); err != nil {
			return err
		}
		e.driver.Sleep(ClearFirstDelay)
	}
	if err := e.driver.ClipboardWrite(text); err != nil {
		return err
	}
	return e.driver.ClipboardPaste()
}

func (e *StepExecutor) selectAll() error {
	return e.driver.PressChord(driver.ShortcutModifier(), "a")
}

func (e *StepExecutor) pressKey(spec string) error {
	if driver.IsChord(spec) {
		return e.driver.PressChord(driver.SplitChord(spec)...)
	}
	keys := driver.SplitChord(spec)
	if len(keys) == 0 {
		return errors.New("empty key")
	}
	return e.driver.PressKey(keys[0])
}
