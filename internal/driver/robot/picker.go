package robot

import (
	"context"
	"time"

	"github.com/go-vgo/robotgo"
	hook "github.com/robotn/gohook"
)

// Point is a screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Position returns the current pointer location.
func Position() Point {
	x, y := robotgo.Location()
	return Point{X: x, Y: y}
}

// Picker captures screen coordinates for click steps.
type Picker struct {
	// Tick is called once per second of a delayed capture with the seconds left.
	Tick func(remaining int)
}

// NextClick blocks until the user presses a mouse button and returns the
// pointer position at that moment.
func (p Picker) NextClick(ctx context.Context) (Point, error) {
	clicks := make(chan Point, 1)
	done := make(chan struct{})

	go func() {
		evChan := hook.Start()
		defer hook.End()

		for {
			select {
			case ev, ok := <-evChan:
				if !ok {
					return
				}
				if ev.Kind == hook.MouseDown {
					select {
					case clicks <- Position():
					default:
					}
					return
				}
			case <-done:
				return
			}
		}
	}()

	select {
	case pt := <-clicks:
		close(done)
		return pt, nil
	case <-ctx.Done():
		close(done)
		return Point{}, ctx.Err()
	}
}

// After waits delay, ticking once per second, then returns the pointer
// position. This lets the user hover over a target without clicking it.
func (p Picker) After(ctx context.Context, delay time.Duration) (Point, error) {
	remaining := int(delay / time.Second)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for remaining > 0 {
		if p.Tick != nil {
			p.Tick(remaining)
		}
		select {
		case <-ctx.Done():
			return Point{}, ctx.Err()
		case <-ticker.C:
			remaining--
		}
	}

	return Position(), nil
}
