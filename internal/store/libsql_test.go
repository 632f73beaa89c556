package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/deskbot/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func seedRun(t *testing.T, s *LibSQLStore) *Run {
	t.Helper()
	r := &Run{
		ID:      uuid.New().String(),
		JobPath: "/jobs/inventory.yaml",
		Status:  schema.RunStatusIdle,
		Limit:   5,
	}
	require.NoError(t, s.CreateRun(context.Background(), r))
	return r
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var dbErr *schema.DeskbotError
	require.True(t, errors.As(err, &dbErr), "expected DeskbotError, got %v", err)
	assert.Equal(t, code, dbErr.Code)
}

// --- Run Tests ---

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedRun(t, s)

	got, err := s.GetRun(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, "/jobs/inventory.yaml", got.JobPath)
	assert.Equal(t, schema.RunStatusIdle, got.Status)
	assert.Equal(t, 5, got.Limit)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.Error)
}

func TestCreateRun_Validation(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateRun(context.Background(), &Run{})
	requireCode(t, err, schema.ErrCodeValidation)
}

func TestCreateRun_Duplicate(t *testing.T) {
	s := newTestStore(t)
	r := seedRun(t, s)
	err := s.CreateRun(context.Background(), &Run{ID: r.ID})
	requireCode(t, err, schema.ErrCodeConflict)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nonexistent")
	requireCode(t, err, schema.ErrCodeNotFound)
}

func TestUpdateRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedRun(t, s)

	status := schema.RunStatusAborted
	success, failed, skipped := 2, 1, 0
	now := time.Now().UTC()
	require.NoError(t, s.UpdateRun(ctx, r.ID, RunUpdate{
		Status:      &status,
		Success:     &success,
		Failed:      &failed,
		Skipped:     &skipped,
		Error:       json.RawMessage(`{"code":"ABORTED"}`),
		StartedAt:   &now,
		CompletedAt: &now,
	}))

	got, err := s.GetRun(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.RunStatusAborted, got.Status)
	assert.Equal(t, 2, got.Success)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 0, got.Skipped)
	assert.JSONEq(t, `{"code":"ABORTED"}`, string(got.Error))
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, now, *got.CompletedAt, time.Second)
}

func TestUpdateRun_NoFieldsIsNoop(t *testing.T) {
	s := newTestStore(t)
	r := seedRun(t, s)
	require.NoError(t, s.UpdateRun(context.Background(), r.ID, RunUpdate{}))
}

func TestUpdateRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	status := schema.RunStatusCompleted
	err := s.UpdateRun(context.Background(), "missing", RunUpdate{Status: &status})
	requireCode(t, err, schema.ErrCodeNotFound)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, st := range []schema.RunStatus{schema.RunStatusCompleted, schema.RunStatusAborted, schema.RunStatusCompleted} {
		require.NoError(t, s.CreateRun(ctx, &Run{
			ID:        uuid.New().String(),
			JobPath:   "job.yaml",
			Status:    st,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.True(t, !all[0].CreatedAt.Before(all[1].CreatedAt), "newest first")

	completed := schema.RunStatusCompleted
	done, err := s.ListRuns(ctx, RunFilter{Status: &completed})
	require.NoError(t, err)
	assert.Len(t, done, 2)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.ListRuns(ctx, RunFilter{JobPath: "other.yaml"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteRun_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedRun(t, s)

	require.NoError(t, s.RecordResult(ctx, &RecordResult{RunID: r.ID, Index: 1, Status: schema.RecordStatusSuccess}))
	require.NoError(t, s.AppendEvent(ctx, &Event{RunID: r.ID, Type: schema.EventRunCountdown}))

	require.NoError(t, s.DeleteRun(ctx, r.ID))

	_, err := s.GetRun(ctx, r.ID)
	requireCode(t, err, schema.ErrCodeNotFound)

	results, err := s.ListRecordResults(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, results)

	events, err := s.GetEvents(ctx, r.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	requireCode(t, s.DeleteRun(ctx, r.ID), schema.ErrCodeNotFound)
}

// --- Record result tests ---

func TestRecordResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedRun(t, s)

	require.NoError(t, s.RecordResult(ctx, &RecordResult{RunID: r.ID, Index: 2, Code: "B2", Status: schema.RecordStatusFailed,
		Step: "open search", Error: json.RawMessage(`{"code":"MISSING_COORDINATES"}`), DurationMs: 12}))
	require.NoError(t, s.RecordResult(ctx, &RecordResult{RunID: r.ID, Index: 1, Code: "A1", Status: schema.RecordStatusSuccess, DurationMs: 30}))

	results, err := s.ListRecordResults(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, "A1", results[0].Code)
	assert.Equal(t, schema.RecordStatusSuccess, results[0].Status)
	assert.Empty(t, results[0].Step)

	assert.Equal(t, 2, results[1].Index)
	assert.Equal(t, "open search", results[1].Step)
	assert.JSONEq(t, `{"code":"MISSING_COORDINATES"}`, string(results[1].Error))
	assert.Equal(t, int64(12), results[1].DurationMs)
}

func TestRecordResult_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedRun(t, s)

	require.NoError(t, s.RecordResult(ctx, &RecordResult{RunID: r.ID, Index: 1, Status: schema.RecordStatusFailed}))
	require.NoError(t, s.RecordResult(ctx, &RecordResult{RunID: r.ID, Index: 1, Status: schema.RecordStatusSuccess}))

	results, err := s.ListRecordResults(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, schema.RecordStatusSuccess, results[0].Status)
}

// --- Event tests ---

func TestAppendAndGetEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := seedRun(t, s)

	types := []string{schema.EventRunCountdown, schema.EventRunProcessing, schema.EventRecordSucceeded}
	for i, et := range types {
		e := &Event{RunID: r.ID, Type: et, Record: i}
		require.NoError(t, s.AppendEvent(ctx, e))
		assert.Equal(t, int64(i+1), e.Sequence)
		assert.False(t, e.Timestamp.IsZero())
	}

	events, err := s.GetEvents(ctx, r.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, schema.EventRecordSucceeded, events[2].Type)
	assert.Equal(t, 2, events[2].Record)

	since, err := s.GetEvents(ctx, r.ID, 1)
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

func TestGetEventsByType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r1 := seedRun(t, s)
	r2 := seedRun(t, s)

	require.NoError(t, s.AppendEvent(ctx, &Event{RunID: r1.ID, Record: 1, Step: "type code", Type: schema.EventStepFailed}))
	require.NoError(t, s.AppendEvent(ctx, &Event{RunID: r1.ID, Record: 2, Step: "type code", Type: schema.EventStepFailed}))
	require.NoError(t, s.AppendEvent(ctx, &Event{RunID: r2.ID, Record: 1, Type: schema.EventRecordSucceeded}))

	failed, err := s.GetEventsByType(ctx, schema.EventStepFailed, EventFilter{})
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	scoped, err := s.GetEventsByType(ctx, schema.EventStepFailed, EventFilter{RunID: r1.ID, Record: 2})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "type code", scoped[0].Step)

	limited, err := s.GetEventsByType(ctx, schema.EventStepFailed, EventFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	// Migrate was already called in newTestStore.
	require.NoError(t, s.Migrate(context.Background()))
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Vacuum(context.Background()))
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- only a comment;\nCREATE INDEX i ON a(x);")
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Contains(t, stmts[1], "CREATE INDEX i")
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_indexes.sql":        {Data: []byte("CREATE INDEX i ON a(x);")},
		"migrations/001_initial_schema.sql": {Data: []byte("CREATE TABLE a (x INT);")},
	}
	ms, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 1, ms[0].version)
	assert.Equal(t, "initial_schema", ms[0].name)
	assert.Equal(t, 2, ms[1].version)
}

func TestLoadMigrations_BadNames(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{"migrations/schema.sql": {Data: []byte("")}})
	require.Error(t, err)

	_, err = loadMigrations(fstest.MapFS{
		"migrations/001_a.sql": {Data: []byte("")},
		"migrations/1_b.sql":   {Data: []byte("")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 1")
}

func TestLoadMigrations_Embedded(t *testing.T) {
	ms, err := loadMigrations(migrationFiles)
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	assert.Equal(t, 1, ms[0].version)
	assert.NotEmpty(t, splitStatements(ms[0].script))
}
