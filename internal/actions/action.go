package actions

import "time"

// Kind names a step's action as it appears in the job file.
type Kind string

const (
	KindClick       Kind = "click"
	KindDoubleClick Kind = "double_click"
	KindTypeText    Kind = "type_text"
	KindPressKey    Kind = "press_key"
	KindWait        Kind = "wait"
	KindClearInput  Kind = "clear_input"
)

// DefaultWait is used by wait steps without a duration.
const DefaultWait = time.Second

// Action is one declarative UI operation in a step list.
// The set of implementations is closed: only this package can add variants.
type Action interface {
	Kind() Kind
	Label() string
	Settle() time.Duration
	isAction()
}

// Common holds the fields every action carries.
type Common struct {
	Name      string
	WaitAfter time.Duration // applied after the action's own effect, only if > 0
}

// Label returns the step name used in logs.
func (c Common) Label() string { return c.Name }

// Settle returns the post-action pause.
func (c Common) Settle() time.Duration { return c.WaitAfter }

func (Common) isAction() {}

// Click moves the pointer to (X, Y) and clicks once or twice.
// A nil coordinate means the step was saved without one.
type Click struct {
	Common
	X, Y   *int
	Double bool
}

func (c Click) Kind() Kind {
	if c.Double {
		return KindDoubleClick
	}
	return KindClick
}

// Point returns the coordinates and whether both are present.
func (c Click) Point() (x, y int, ok bool) {
	if c.X == nil || c.Y == nil {
		return 0, 0, false
	}
	return *c.X, *c.Y, true
}

// TypeText pastes Template, after placeholder substitution, into the focused control.
type TypeText struct {
	Common
	Template   string
	ClearFirst bool
}

func (TypeText) Kind() Kind { return KindTypeText }

// PressKey presses a single key ("enter") or a chord ("ctrl+s").
type PressKey struct {
	Common
	KeySpec string
}

func (PressKey) Kind() Kind { return KindPressKey }

// Wait blocks for Duration.
type Wait struct {
	Common
	Duration time.Duration
}

func (Wait) Kind() Kind { return KindWait }

// ClearInput selects everything in the focused control and deletes it.
type ClearInput struct {
	Common
}

func (ClearInput) Kind() Kind { return KindClearInput }

// Unknown is a step whose action name is not registered.
// It is kept in the list so the failure surfaces per record at execution time.
type Unknown struct {
	Common
	Type string
}

func (u Unknown) Kind() Kind { return Kind(u.Type) }

// Info summarizes a decodable kind for listing.
type Info struct {
	Kind        Kind   `json:"kind"`
	Description string `json:"description,omitempty"`
}
