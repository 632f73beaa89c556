package schema

// Event type constants for the run event log.
const (
	EventRunCountdown  = "run_countdown"
	EventRunProcessing = "run_processing"
	EventRunCompleted  = "run_completed"
	EventRunAborted    = "run_aborted"
	EventRunFailed     = "run_failed"

	EventRecordSucceeded = "record_succeeded"
	EventRecordFailed    = "record_failed"
	EventRecordSkipped   = "record_skipped"

	EventStepFailed = "step_failed"
)

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusIdle         RunStatus = "idle"
	RunStatusCountingDown RunStatus = "counting_down"
	RunStatusProcessing   RunStatus = "processing"
	RunStatusCompleted    RunStatus = "completed"
	RunStatusAborted      RunStatus = "aborted"
	RunStatusFailed       RunStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusAborted || s == RunStatusFailed
}

// RecordStatus is the outcome of a single record.
type RecordStatus string

const (
	RecordStatusSuccess RecordStatus = "success"
	RecordStatusFailed  RecordStatus = "failed"
	RecordStatusSkipped RecordStatus = "skipped"
)
