package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// JobDefinition is the persisted job file format (config.yaml).
type JobDefinition struct {
	Excel    DataConfig       `yaml:"excel" json:"excel"`
	Settings Settings         `yaml:"settings,omitempty" json:"settings,omitzero"`
	Steps    []StepDefinition `yaml:"steps" json:"steps"`
}

// DataConfig locates the spreadsheet and names the two columns the steps refer to.
type DataConfig struct {
	FilePath       string `yaml:"file_path" json:"file_path"`
	SheetName      string `yaml:"sheet_name,omitempty" json:"sheet_name,omitempty"`
	CodeColumn     string `yaml:"code_column" json:"code_column"`
	QuantityColumn string `yaml:"quantity_column" json:"quantity_column"`
}

// Settings tune a run. Zero values fall back to the defaults below.
type Settings struct {
	FailSafe     *bool   `yaml:"failsafe,omitempty" json:"failsafe,omitempty"`
	Countdown    *int    `yaml:"countdown,omitempty" json:"countdown,omitempty"`         // seconds before processing
	Pause        Seconds `yaml:"pause,omitempty" json:"pause,omitzero"`                  // pause after every driver primitive
	Filter       string  `yaml:"filter,omitempty" json:"filter,omitempty"`               // boolean expression over the record
	FilterEngine string  `yaml:"filter_engine,omitempty" json:"filter_engine,omitempty"` // expr | cel (default: expr)
	Schedule     string  `yaml:"schedule,omitempty" json:"schedule,omitempty"`           // cron expression for `deskbot schedule`
}

// Defaults for Settings.
const (
	DefaultCountdown    = 3
	DefaultPause        = 0.1
	DefaultFilterEngine = "expr"
)

// FailSafeEnabled returns the configured fail-safe flag (default: true).
func (s Settings) FailSafeEnabled() bool {
	return s.FailSafe == nil || *s.FailSafe
}

// CountdownSeconds returns the configured countdown (default: 3).
func (s Settings) CountdownSeconds() int {
	if s.Countdown == nil || *s.Countdown < 0 {
		return DefaultCountdown
	}
	return *s.Countdown
}

// PauseSeconds returns the configured primitive pause (default: 0.1).
func (s Settings) PauseSeconds() float64 {
	if !s.Pause.Valid {
		return DefaultPause
	}
	return s.Pause.Value
}

// StepDefinition is the loosely-typed persisted form of one step.
// actions.Decode turns it into a typed Action.
type StepDefinition struct {
	Name       string  `yaml:"name,omitempty" json:"name,omitempty"`
	Action     string  `yaml:"action" json:"action"` // click | double_click | type_text | press_key | wait | clear_input
	X          *int    `yaml:"x,omitempty" json:"x,omitempty"`
	Y          *int    `yaml:"y,omitempty" json:"y,omitempty"`
	Text       string  `yaml:"text,omitempty" json:"text,omitempty"`
	ClearFirst bool    `yaml:"clear_first,omitempty" json:"clear_first,omitempty"`
	Key        string  `yaml:"key,omitempty" json:"key,omitempty"`
	Seconds    Seconds `yaml:"seconds,omitempty" json:"seconds,omitzero"`
	WaitAfter  Seconds `yaml:"wait_after,omitempty" json:"wait_after,omitzero"`
	// Target is an image file name saved by older step editors. It is read
	// so those files load, and otherwise ignored.
	Target string `yaml:"target,omitempty" json:"target,omitempty"`
}

// Seconds is an optional number of seconds.
// Malformed values decode as unset instead of failing the whole file.
type Seconds struct {
	Value float64
	Valid bool
}

// SecondsOf returns a set Seconds.
func SecondsOf(v float64) Seconds {
	return Seconds{Value: v, Valid: true}
}

// IsZero reports whether the value is unset. Used by yaml omitempty and json omitzero.
func (s Seconds) IsZero() bool { return !s.Valid }

// UnmarshalYAML accepts numbers and numeric strings.
func (s *Seconds) UnmarshalYAML(node *yaml.Node) error {
	*s = parseSeconds(node.Value)
	return nil
}

// MarshalYAML writes the number, or null when unset.
func (s Seconds) MarshalYAML() (any, error) {
	if !s.Valid {
		return nil, nil
	}
	return s.Value, nil
}

// UnmarshalJSON accepts numbers and numeric strings.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = unq
	}
	*s = parseSeconds(raw)
	return nil
}

// MarshalJSON writes the number, or null when unset.
func (s Seconds) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

func parseSeconds(raw string) Seconds {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "~" {
		return Seconds{}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Seconds{}
	}
	return SecondsOf(v)
}

// DurationOf converts seconds to a Duration. NaN and non-positive values
// give 0; values past the Duration range give the largest Duration.
func DurationOf(seconds float64) time.Duration {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	ns := seconds * float64(time.Second)
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}
