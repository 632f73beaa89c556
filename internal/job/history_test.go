package job

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/deskbot/internal/store"
	"github.com/rendis/deskbot/pkg/schema"
)

func newHistoryStore(t *testing.T) *store.LibSQLStore {
	t.Helper()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// runRecorded runs sampleJob against three records with history enabled.
func runRecorded(t *testing.T, st *store.LibSQLStore) string {
	t.Helper()
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", sampleJob)
	writeFile(t, dir, "data/stock.csv", "code,qty\nA,2\nB,0\nC,5\n")

	svc := newTestService(t, &fakeDriver{}, func(deps *ServiceDeps) {
		deps.Store = st
		deps.Events = store.NewEventLog(st)
	})
	res, err := svc.Run(context.Background(), RunRequest{ConfigPath: path})
	require.NoError(t, err)
	return res.RunID
}

func TestHistory_List(t *testing.T) {
	st := newHistoryStore(t)
	first := runRecorded(t, st)
	second := runRecorded(t, st)

	out, err := NewHistory(st, nil).Query(context.Background(), HistoryQuery{})
	require.NoError(t, err)
	runs := out.(map[string]any)["runs"].([]*store.Run)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.ElementsMatch(t, []string{first, second}, ids)
	assert.Equal(t, schema.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 2, runs[0].Success)
	assert.Equal(t, 1, runs[0].Skipped)
}

func TestHistory_ListEmptyAndFiltered(t *testing.T) {
	st := newHistoryStore(t)
	h := NewHistory(st, nil)

	out, err := h.Query(context.Background(), HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, out.(map[string]any)["runs"])

	runRecorded(t, st)
	out, err = h.Query(context.Background(), HistoryQuery{Status: string(schema.RunStatusAborted)})
	require.NoError(t, err)
	assert.Empty(t, out.(map[string]any)["runs"])
}

func TestHistory_Detail(t *testing.T) {
	st := newHistoryStore(t)
	runID := runRecorded(t, st)

	out, err := NewHistory(st, store.NewEventLog(st)).Query(context.Background(), HistoryQuery{RunID: runID})
	require.NoError(t, err)
	d := out.(*RunDetail)
	assert.Equal(t, runID, d.Run.ID)
	require.Len(t, d.Records, 3)
	assert.Equal(t, schema.RecordStatusSkipped, d.Records[1].Status)
	require.NotNil(t, d.Snapshot)
	assert.Equal(t, schema.RunStatusCompleted, d.Snapshot.Status)
	assert.Equal(t, 2, d.Snapshot.Success)
	assert.Equal(t, int64(len(d.Events)), d.Snapshot.LastSequence)
}

func TestHistory_DetailNotFound(t *testing.T) {
	_, err := NewHistory(newHistoryStore(t), nil).Query(context.Background(), HistoryQuery{RunID: "ghost"})
	requireCode(t, err, schema.ErrCodeNotFound)
}

func TestHistory_JQ(t *testing.T) {
	st := newHistoryStore(t)
	runID := runRecorded(t, st)
	h := NewHistory(st, nil)

	out, err := h.Query(context.Background(), HistoryQuery{JQ: ".runs[0].status"})
	require.NoError(t, err)
	assert.Equal(t, "completed", out)

	out, err = h.Query(context.Background(), HistoryQuery{RunID: runID, JQ: `[.records[] | select(.status == "success") | .code]`})
	require.NoError(t, err)
	assert.Equal(t, []any{"A", "C"}, out)

	_, err = h.Query(context.Background(), HistoryQuery{JQ: ".runs["})
	requireCode(t, err, schema.ErrCodeConfiguration)
}

func TestHistory_NoStore(t *testing.T) {
	_, err := NewHistory(nil, nil).Query(context.Background(), HistoryQuery{})
	requireCode(t, err, schema.ErrCodeConfiguration)
}

func TestHistory_Prune(t *testing.T) {
	st := newHistoryStore(t)
	ctx := context.Background()
	for range 3 {
		runRecorded(t, st)
	}
	h := NewHistory(st, nil)

	deleted, err := h.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	records, err := st.ListRecordResults(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, records, 3, "the kept run keeps its records")

	deleted, err = h.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = h.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestHistory_PruneErrors(t *testing.T) {
	_, err := (&History{}).Prune(context.Background(), 1)
	requireCode(t, err, schema.ErrCodeConfiguration)

	_, err = NewHistory(newHistoryStore(t), nil).Prune(context.Background(), -1)
	requireCode(t, err, schema.ErrCodeConfiguration)
}
