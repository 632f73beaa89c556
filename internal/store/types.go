package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/deskbot/pkg/schema"
)

// Run is the persisted summary of one Runner.Run invocation.
type Run struct {
	ID          string           `json:"id"`
	JobPath     string           `json:"job_path,omitempty"`
	Status      schema.RunStatus `json:"status"`
	Limit       int              `json:"limit"`
	Success     int              `json:"success"`
	Failed      int              `json:"failed"`
	Skipped     int              `json:"skipped"`
	Error       json.RawMessage  `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// RecordResult is the outcome of one record within a run.
type RecordResult struct {
	RunID      string              `json:"run_id"`
	Index      int                 `json:"index"`
	Code       string              `json:"code,omitempty"`
	Status     schema.RecordStatus `json:"status"`
	Step       string              `json:"step,omitempty"` // failing step, if any
	Error      json.RawMessage     `json:"error,omitempty"`
	DurationMs int64               `json:"duration_ms"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Event is an immutable entry in a run's event log.
type Event struct {
	ID        int64           `json:"id"`
	RunID     string          `json:"run_id"`
	Record    int             `json:"record,omitempty"`
	Step      string          `json:"step,omitempty"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// --- Filter and update types ---

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  *schema.RunStatus `json:"status,omitempty"`
	JobPath string            `json:"job_path,omitempty"`
	Since   *time.Time        `json:"since,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset,omitempty"`
}

// RunUpdate specifies mutable fields of a run.
type RunUpdate struct {
	Status      *schema.RunStatus `json:"status,omitempty"`
	Success     *int              `json:"success,omitempty"`
	Failed      *int              `json:"failed,omitempty"`
	Skipped     *int              `json:"skipped,omitempty"`
	Error       json.RawMessage   `json:"error,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// EventFilter specifies criteria for listing events.
type EventFilter struct {
	RunID  string     `json:"run_id,omitempty"`
	Record int        `json:"record,omitempty"`
	Since  *time.Time `json:"since,omitempty"`
	Limit  int        `json:"limit,omitempty"`
}
