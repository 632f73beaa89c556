// Package robot implements driver.Driver on the local display with robotgo.
package robot

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-vgo/robotgo"

	"github.com/rendis/deskbot/internal/driver"
)

// DefaultPause is slept after every primitive so the target application can
// keep up.
const DefaultPause = 100 * time.Millisecond

// Options configures a Driver.
type Options struct {
	Pause    time.Duration
	FailSafe bool
	// Corner is the distance in pixels from (0,0) that still counts as the
	// fail-safe corner.
	Corner int
	Logger *slog.Logger
}

// Driver drives the real desktop through robotgo.
type Driver struct {
	pause    time.Duration
	failSafe bool
	corner   int
	logger   *slog.Logger
}

// New creates a driver for the local display.
func New(opts Options) *Driver {
	if opts.Pause < 0 {
		opts.Pause = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{
		pause:    opts.Pause,
		failSafe: opts.FailSafe,
		corner:   opts.Corner,
		logger:   opts.Logger,
	}
}

// MoveClick moves the pointer to (x, y) and clicks the left button.
func (d *Driver) MoveClick(x, y int, double bool) error {
	if err := d.guard(); err != nil {
		return err
	}
	robotgo.Move(x, y)
	robotgo.Click("left", double)
	d.settle()
	return nil
}

// PressChord holds every key but the last as a modifier and taps the last.
func (d *Driver) PressChord(keys ...string) error {
	if len(keys) == 0 {
		return fmt.Errorf("empty key chord")
	}
	if err := d.guard(); err != nil {
		return err
	}

	key := driver.NormalizeKey(keys[len(keys)-1])
	mods := make([]interface{}, 0, len(keys)-1)
	for _, m := range keys[:len(keys)-1] {
		mods = append(mods, driver.NormalizeKey(m))
	}
	if err := robotgo.KeyTap(key, mods...); err != nil {
		return fmt.Errorf("key tap %v: %w", keys, err)
	}
	d.settle()
	return nil
}

// PressKey taps a single key.
func (d *Driver) PressKey(key string) error {
	if err := d.guard(); err != nil {
		return err
	}
	if err := robotgo.KeyTap(driver.NormalizeKey(key)); err != nil {
		return fmt.Errorf("key tap %q: %w", key, err)
	}
	d.settle()
	return nil
}

// ClipboardWrite replaces the clipboard contents.
func (d *Driver) ClipboardWrite(text string) error {
	if err := d.guard(); err != nil {
		return err
	}
	if err := robotgo.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// ClipboardPaste sends the platform paste chord.
func (d *Driver) ClipboardPaste() error {
	return d.PressChord(driver.ShortcutModifier(), "v")
}

// Sleep blocks the calling goroutine.
func (d *Driver) Sleep(dur time.Duration) {
	if dur > 0 {
		time.Sleep(dur)
	}
}

// FailSafeTriggered reports whether the pointer sits in the top-left corner.
func (d *Driver) FailSafeTriggered() bool {
	if !d.failSafe {
		return false
	}
	pt := Position()
	return driver.InCorner(pt.X, pt.Y, d.corner)
}

func (d *Driver) guard() error {
	if d.FailSafeTriggered() {
		pt := Position()
		d.logger.Warn("fail-safe triggered", "x", pt.X, "y", pt.Y)
		return driver.ErrFailSafe
	}
	return nil
}

func (d *Driver) settle() {
	d.Sleep(d.pause)
}

var _ driver.Driver = (*Driver)(nil)
