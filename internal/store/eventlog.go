package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rendis/deskbot/pkg/schema"
)

// EventLog provides event-sourcing operations on top of a LibSQLStore.
type EventLog struct {
	store *LibSQLStore
}

// NewEventLog wraps a LibSQLStore to provide event-sourcing operations.
func NewEventLog(s *LibSQLStore) *EventLog {
	return &EventLog{store: s}
}

// AppendEvent appends an event with a monotonically increasing per-run sequence.
// A write is issued first so the sequence read happens under the write lock.
func (el *EventLog) AppendEvent(ctx context.Context, event *Event) error {
	db := el.store.DB()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin immediate tx: %w", err)
	}
	defer tx.Rollback()

	// In WAL mode BeginTx may start a deferred transaction; force the lock.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return fmt.Errorf("cleanup write lock: %w", err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE run_id = ?`, event.RunID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (run_id, record_index, step, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, event.Record, nullStr(event.Step), event.Type, nullRaw(event.Payload), event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// GetEvents returns events for a run with sequence > since, ordered by sequence ASC.
func (el *EventLog) GetEvents(ctx context.Context, runID string, since int64) ([]*Event, error) {
	return el.store.GetEvents(ctx, runID, since)
}

// RunSnapshot is a run's state rebuilt from its event log alone.
type RunSnapshot struct {
	RunID        string                      `json:"run_id"`
	Status       schema.RunStatus            `json:"status"`
	Success      int                         `json:"success"`
	Failed       int                         `json:"failed"`
	Skipped      int                         `json:"skipped"`
	Records      map[int]schema.RecordStatus `json:"records"`
	FailedSteps  map[int]string              `json:"failed_steps,omitempty"`
	LastSequence int64                       `json:"last_sequence"`
}

// ReplayRun replays all events of a run and returns the reconstructed state.
// Returns an error if sequence gaps are detected.
func (el *EventLog) ReplayRun(ctx context.Context, runID string) (*RunSnapshot, error) {
	events, err := el.store.GetEvents(ctx, runID, 0)
	if err != nil {
		return nil, fmt.Errorf("get events for replay: %w", err)
	}

	snap := &RunSnapshot{
		RunID:       runID,
		Status:      schema.RunStatusIdle,
		Records:     make(map[int]schema.RecordStatus),
		FailedSteps: make(map[int]string),
	}

	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in run %s: expected %d, got %d", runID, expected, e.Sequence)
		}
		snap.LastSequence = e.Sequence

		switch e.Type {
		case schema.EventRunCountdown:
			snap.Status = schema.RunStatusCountingDown
		case schema.EventRunProcessing:
			snap.Status = schema.RunStatusProcessing
		case schema.EventRunCompleted:
			snap.Status = schema.RunStatusCompleted
		case schema.EventRunAborted:
			snap.Status = schema.RunStatusAborted
		case schema.EventRunFailed:
			snap.Status = schema.RunStatusFailed

		case schema.EventRecordSucceeded:
			snap.Records[e.Record] = schema.RecordStatusSuccess
		case schema.EventRecordFailed:
			snap.Records[e.Record] = schema.RecordStatusFailed
		case schema.EventRecordSkipped:
			snap.Records[e.Record] = schema.RecordStatusSkipped

		case schema.EventStepFailed:
			snap.FailedSteps[e.Record] = e.Step
		}
	}

	for _, st := range snap.Records {
		switch st {
		case schema.RecordStatusSuccess:
			snap.Success++
		case schema.RecordStatusFailed:
			snap.Failed++
		case schema.RecordStatusSkipped:
			snap.Skipped++
		}
	}
	return snap, nil
}
