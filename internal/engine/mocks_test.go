package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rendis/deskbot/internal/driver"
	"github.com/rendis/deskbot/internal/source"
	"github.com/rendis/deskbot/internal/store"
	"github.com/rendis/deskbot/pkg/schema"
)

// --- Mock implementations ---

// stubDriver records every primitive instead of touching the desktop.
// Sleeps are recorded and return immediately.
type stubDriver struct {
	mu     sync.Mutex
	calls  []string
	sleeps []time.Duration

	failSafe    bool
	tripOnText  string           // ClipboardWrite of this text trips the fail-safe afterwards
	failOnText  map[string]error // ClipboardWrite of this text returns the error
	panicOnText string
	errOnKey    map[string]error
}

func newStubDriver() *stubDriver {
	return &stubDriver{failOnText: map[string]error{}, errOnKey: map[string]error{}}
}

func (d *stubDriver) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *stubDriver) MoveClick(x, y int, double bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSafe {
		return driver.ErrFailSafe
	}
	d.record("click(%d,%d,%t)", x, y, double)
	return nil
}

func (d *stubDriver) PressChord(keys ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSafe {
		return driver.ErrFailSafe
	}
	d.record("chord(%s)", strings.Join(keys, "+"))
	return nil
}

func (d *stubDriver) PressKey(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSafe {
		return driver.ErrFailSafe
	}
	if err := d.errOnKey[key]; err != nil {
		return err
	}
	d.record("key(%s)", key)
	return nil
}

func (d *stubDriver) ClipboardWrite(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSafe {
		return driver.ErrFailSafe
	}
	if d.panicOnText != "" && text == d.panicOnText {
		panic("clipboard exploded")
	}
	if err := d.failOnText[text]; err != nil {
		return err
	}
	d.record("write(%s)", text)
	if d.tripOnText != "" && text == d.tripOnText {
		d.failSafe = true
	}
	return nil
}

func (d *stubDriver) ClipboardPaste() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSafe {
		return driver.ErrFailSafe
	}
	d.record("paste")
	return nil
}

func (d *stubDriver) Sleep(dur time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sleeps = append(d.sleeps, dur)
}

func (d *stubDriver) FailSafeTriggered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failSafe
}

func (d *stubDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *stubDriver) Sleeps() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.sleeps...)
}

func (d *stubDriver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
	d.sleeps = nil
}

// staticSource returns fixed records, or a fixed error.
type staticSource struct {
	mu      sync.Mutex
	records []source.Record
	err     error
	loads   int
}

func (s *staticSource) Load(_ context.Context) ([]source.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *staticSource) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// recordsOf builds n records with codes C1..Cn and quantities 1..n.
func recordsOf(n int) []source.Record {
	out := make([]source.Record, n)
	for i := range out {
		out[i] = source.Record{
			Index:  i + 1,
			Fields: map[string]any{"code": fmt.Sprintf("C%d", i+1), "qty": i + 1},
		}
	}
	return out
}

// mockStore is a minimal in-memory Store for testing.
type mockStore struct {
	mu      sync.Mutex
	runs    map[string]*store.Run
	results []*store.RecordResult
	events  []*store.Event

	appendErr error
}

func newMockStore() *mockStore {
	return &mockStore{runs: make(map[string]*store.Run)}
}

func (m *mockStore) CreateRun(_ context.Context, run *store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *mockStore) GetRun(_ context.Context, id string) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "run %q not found", id)
	}
	cp := *run
	return &cp, nil
}

func (m *mockStore) UpdateRun(_ context.Context, id string, update store.RunUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("run not found: %s", id)
	}
	if update.Status != nil {
		run.Status = *update.Status
	}
	if update.Success != nil {
		run.Success = *update.Success
	}
	if update.Failed != nil {
		run.Failed = *update.Failed
	}
	if update.Skipped != nil {
		run.Skipped = *update.Skipped
	}
	if update.Error != nil {
		run.Error = update.Error
	}
	if update.CompletedAt != nil {
		run.CompletedAt = update.CompletedAt
	}
	return nil
}

func (m *mockStore) ListRuns(_ context.Context, _ store.RunFilter) ([]*store.Run, error) {
	return nil, nil
}

func (m *mockStore) DeleteRun(_ context.Context, _ string) error { return nil }

func (m *mockStore) RecordResult(_ context.Context, r *store.RecordResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func (m *mockStore) ListRecordResults(_ context.Context, runID string) ([]*store.RecordResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.RecordResult
	for _, r := range m.results {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) AppendEvent(_ context.Context, event *store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	event.Sequence = int64(len(m.events) + 1)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockStore) GetEvents(_ context.Context, runID string, since int64) ([]*store.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Event
	for _, e := range m.events {
		if e.RunID == runID && e.Sequence > since {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) GetEventsByType(_ context.Context, eventType string, _ store.EventFilter) ([]*store.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Event
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }
func (m *mockStore) Vacuum(_ context.Context) error  { return nil }
func (m *mockStore) Close() error                    { return nil }

func (m *mockStore) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

var errBoom = errors.New("boom")

var _ store.Store = (*mockStore)(nil)
var _ driver.Driver = (*stubDriver)(nil)
