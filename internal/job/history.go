package job

import (
	"context"

	"github.com/rendis/deskbot/internal/expressions"
	"github.com/rendis/deskbot/internal/store"
	"github.com/rendis/deskbot/pkg/schema"
)

// DefaultHistoryLimit caps run listings when no limit is given.
const DefaultHistoryLimit = 20

// HistoryQuery selects runs from the history store.
type HistoryQuery struct {
	RunID  string // when set, returns the detail of one run
	Status string
	Limit  int
	JQ     string // optional jq program applied to the result
}

// RunDetail is the full history of one run.
type RunDetail struct {
	Run      *store.Run            `json:"run"`
	Records  []*store.RecordResult `json:"records"`
	Events   []*store.Event        `json:"events"`
	Snapshot *store.RunSnapshot    `json:"snapshot,omitempty"`
}

// Replayer rebuilds a run's state from its event log.
type Replayer interface {
	ReplayRun(ctx context.Context, runID string) (*store.RunSnapshot, error)
}

// History answers history queries. Replay is optional.
type History struct {
	Store  store.Store
	Replay Replayer
	jq     *expressions.JQ
}

// NewHistory creates a History over st.
func NewHistory(st store.Store, replay Replayer) *History {
	return &History{Store: st, Replay: replay, jq: expressions.NewJQ()}
}

// Query returns a run listing ({"runs": [...]}) or a RunDetail, optionally
// transformed by q.JQ.
func (h *History) Query(ctx context.Context, q HistoryQuery) (any, error) {
	if h.Store == nil {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "history store is not configured")
	}

	var (
		out any
		err error
	)
	if q.RunID != "" {
		out, err = h.detail(ctx, q.RunID)
	} else {
		out, err = h.list(ctx, q)
	}
	if err != nil || q.JQ == "" {
		return out, err
	}
	return h.jq.Query(ctx, q.JQ, out)
}

func (h *History) list(ctx context.Context, q HistoryQuery) (map[string]any, error) {
	filter := store.RunFilter{Limit: q.Limit}
	if filter.Limit <= 0 {
		filter.Limit = DefaultHistoryLimit
	}
	if q.Status != "" {
		st := schema.RunStatus(q.Status)
		filter.Status = &st
	}
	runs, err := h.Store.ListRuns(ctx, filter)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list runs").WithCause(err)
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	return map[string]any{"runs": runs}, nil
}

func (h *History) detail(ctx context.Context, runID string) (*RunDetail, error) {
	run, err := h.Store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	records, err := h.Store.ListRecordResults(ctx, runID)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list record results").WithCause(err)
	}
	events, err := h.Store.GetEvents(ctx, runID, 0)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list events").WithCause(err)
	}

	d := &RunDetail{Run: run, Records: records, Events: events}
	if h.Replay != nil {
		snap, err := h.Replay.ReplayRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		d.Snapshot = snap
	}
	return d, nil
}

// Prune deletes every run but the newest keep, with their records and
// events, and returns how many runs were deleted.
func (h *History) Prune(ctx context.Context, keep int) (int, error) {
	if h.Store == nil {
		return 0, schema.NewError(schema.ErrCodeConfiguration, "history store is not configured")
	}
	if keep < 0 {
		return 0, schema.NewErrorf(schema.ErrCodeConfiguration, "keep must be >= 0, got %d", keep)
	}
	runs, err := h.Store.ListRuns(ctx, store.RunFilter{})
	if err != nil {
		return 0, schema.NewError(schema.ErrCodeStore, "list runs").WithCause(err)
	}
	if len(runs) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, run := range runs[keep:] {
		if err := h.Store.DeleteRun(ctx, run.ID); err != nil {
			return deleted, schema.NewErrorf(schema.ErrCodeStore, "delete run %s", run.ID).WithCause(err)
		}
		deleted++
	}
	if err := h.Store.Vacuum(ctx); err != nil {
		return deleted, schema.NewError(schema.ErrCodeStore, "vacuum history").WithCause(err)
	}
	return deleted, nil
}
