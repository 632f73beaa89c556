package engine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rendis/deskbot/internal/store"
	"github.com/rendis/deskbot/pkg/schema"
)

// TransitionHook is called after a state transition.
type TransitionHook func(from, to string) error

// EventAppender is satisfied by the Store and EventLog; used to emit events on transitions.
type EventAppender interface {
	AppendEvent(ctx context.Context, event *store.Event) error
}

type runHookKey struct {
	from, to schema.RunStatus
}

// RunFSM manages run lifecycle state transitions.
type RunFSM struct {
	mu       sync.Mutex
	appender EventAppender
	after    map[runHookKey][]TransitionHook
}

// NewRunFSM creates a RunFSM that emits events via the given appender.
// A nil appender disables event emission.
func NewRunFSM(appender EventAppender) *RunFSM {
	return &RunFSM{
		appender: appender,
		after:    make(map[runHookKey][]TransitionHook),
	}
}

// OnAfter registers a hook called once a run transition and its event are
// done. A hook error is returned from Transition.
func (f *RunFSM) OnAfter(from, to schema.RunStatus, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := runHookKey{from, to}
	f.after[key] = append(f.after[key], hook)
}

// Transition validates and executes a run state transition, emitting the
// matching event with the given payload.
func (f *RunFSM) Transition(ctx context.Context, runID string, from, to schema.RunStatus, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !isValidRunTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid run transition: %s -> %s", from, to).
			WithDetails(map[string]any{"run_id": runID, "from": string(from), "to": string(to)})
	}

	if eventType := runEventType(to); eventType != "" && f.appender != nil {
		event := &store.Event{
			RunID:   runID,
			Type:    eventType,
			Payload: payload,
		}
		if err := f.appender.AppendEvent(ctx, event); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "emit run event: %s", err.Error()).WithCause(err)
		}
	}

	for _, hook := range f.after[runHookKey{from, to}] {
		if err := hook(string(from), string(to)); err != nil {
			return err
		}
	}

	return nil
}

func isValidRunTransition(from, to schema.RunStatus) bool {
	allowed, ok := ValidRunTransitions[from]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == to {
			return true
		}
	}
	return false
}

func runEventType(to schema.RunStatus) string {
	switch to {
	case schema.RunStatusCountingDown:
		return schema.EventRunCountdown
	case schema.RunStatusProcessing:
		return schema.EventRunProcessing
	case schema.RunStatusCompleted:
		return schema.EventRunCompleted
	case schema.RunStatusAborted:
		return schema.EventRunAborted
	case schema.RunStatusFailed:
		return schema.EventRunFailed
	default:
		return ""
	}
}

// ValidRunTransitions defines the allowed state transitions for runs.
var ValidRunTransitions = map[schema.RunStatus][]schema.RunStatus{
	schema.RunStatusIdle:         {schema.RunStatusCountingDown},
	schema.RunStatusCountingDown: {schema.RunStatusProcessing, schema.RunStatusAborted, schema.RunStatusFailed},
	schema.RunStatusProcessing:   {schema.RunStatusCompleted, schema.RunStatusAborted},
	schema.RunStatusCompleted:    {},
	schema.RunStatusAborted:      {},
	schema.RunStatusFailed:       {},
}
