// Package driver sends mouse, keyboard and clipboard input to the desktop.
package driver

import (
	"runtime"
	"time"

	"github.com/rendis/deskbot/pkg/schema"
)

// ErrFailSafe is returned by any primitive once the fail-safe has fired.
// It is an abort signal, not a step failure.
var ErrFailSafe = schema.NewError(schema.ErrCodeAborted, "fail-safe triggered: pointer in the top-left corner")

// Driver is the capability the step executor needs from the desktop.
// Implementations must be safe to call from one goroutine at a time.
type Driver interface {
	MoveClick(x, y int, double bool) error
	PressChord(keys ...string) error
	PressKey(key string) error
	ClipboardWrite(text string) error
	ClipboardPaste() error
	Sleep(d time.Duration)
	FailSafeTriggered() bool
}

// InCorner reports whether (x, y) is within tolerance pixels of (0,0).
func InCorner(x, y, tolerance int) bool {
	if tolerance < 0 {
		tolerance = 0
	}
	return x <= tolerance && y <= tolerance
}

// ShortcutModifier is the modifier of the platform edit shortcuts, such as
// paste and select-all.
func ShortcutModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
