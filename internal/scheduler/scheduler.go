package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/deskbot/pkg/schema"
)

// PollInterval is how often due jobs are checked.
const PollInterval = 15 * time.Second

// Status values recorded after each scheduled run.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrHalt is wrapped by a JobRunner error to take the job off the schedule.
// It is returned after an operator emergency stop.
var ErrHalt = errors.New("schedule halted")

// JobRunner runs one scheduled job to completion.
type JobRunner interface {
	RunJob(ctx context.Context, jobID string) error
}

// JobRunnerFunc adapts a function to JobRunner.
type JobRunnerFunc func(ctx context.Context, jobID string) error

// RunJob calls f.
func (f JobRunnerFunc) RunJob(ctx context.Context, jobID string) error { return f(ctx, jobID) }

// Entry is a snapshot of one scheduled job.
type Entry struct {
	ID         string     `json:"id"`
	Expression string     `json:"expression"`
	NextRunAt  time.Time  `json:"next_run_at"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
}

type entry struct {
	Entry
	schedule cron.Schedule
}

// Scheduler runs jobs on cron expressions. A job never overlaps with itself.
type Scheduler struct {
	runner JobRunner
	parser cron.Parser
	logger *slog.Logger
	now    func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	entriesMu sync.Mutex
	entries   map[string]*entry

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job IDs currently executing (dedup)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(runner JobRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]*entry),
		inflight: make(map[string]struct{}),
	}
}

// Add registers a job. Its first run is the next time the expression matches.
func (s *Scheduler) Add(id, expression string) (Entry, error) {
	if id == "" {
		return Entry{}, schema.NewError(schema.ErrCodeValidation, "job id is empty")
	}
	sched, err := s.parser.Parse(expression)
	if err != nil {
		return Entry{}, schema.NewErrorf(schema.ErrCodeConfiguration, "invalid cron expression %q", expression).WithCause(err)
	}

	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()
	if _, exists := s.entries[id]; exists {
		return Entry{}, schema.NewErrorf(schema.ErrCodeConflict, "job %q already scheduled", id)
	}
	e := &entry{
		Entry:    Entry{ID: id, Expression: expression, NextRunAt: sched.Next(s.now())},
		schedule: sched,
	}
	s.entries[id] = e
	return e.Entry, nil
}

// Remove unschedules a job. A run in progress is not interrupted.
func (s *Scheduler) Remove(id string) {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()
	delete(s.entries, id)
}

// Entries returns all scheduled jobs ordered by next run time.
func (s *Scheduler) Entries() []Entry {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextRunAt.Equal(out[j].NextRunAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].NextRunAt.Before(out[j].NextRunAt)
	})
	return out
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx, s.done)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs every job whose next run time has passed.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	for _, id := range s.due(now) {
		if ctx.Err() != nil {
			return
		}
		if !s.tryAcquire(id) {
			continue // already running (dedup)
		}
		s.runJob(ctx, id)
		s.releaseJob(id)
	}
}

func (s *Scheduler) due(now time.Time) []string {
	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()

	var ids []string
	for id, e := range s.entries {
		if !e.NextRunAt.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// RunNow runs a scheduled job immediately, outside its schedule.
// Returns CONFLICT if the job is already running.
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	s.entriesMu.Lock()
	_, ok := s.entries[id]
	s.entriesMu.Unlock()
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "job %q not scheduled", id)
	}
	if !s.tryAcquire(id) {
		return schema.NewErrorf(schema.ErrCodeConflict, "job %q is already running", id)
	}
	defer s.releaseJob(id)
	return s.runJob(ctx, id)
}

// runJob executes a job and records the outcome. Runs missed while the
// process was busy are not replayed: the next run is computed from the end
// of this one.
func (s *Scheduler) runJob(ctx context.Context, id string) error {
	s.logger.Info("running scheduled job", slog.String("job_id", id))

	err := s.runner.RunJob(ctx, id)
	status := StatusSuccess
	if err != nil {
		status = StatusError
		s.logger.Error("scheduled job failed",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
	}

	now := s.now()
	s.entriesMu.Lock()
	if errors.Is(err, ErrHalt) {
		delete(s.entries, id)
		s.entriesMu.Unlock()
		s.logger.Warn("job removed from schedule", slog.String("job_id", id))
		return err
	}
	if e, ok := s.entries[id]; ok {
		e.LastRunAt = &now
		e.LastStatus = status
		e.NextRunAt = e.schedule.Next(now)
	}
	s.entriesMu.Unlock()
	return err
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(id string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[id]; ok {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

// releaseJob removes the job from the in-flight set.
func (s *Scheduler) releaseJob(id string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, id)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(expression string, from time.Time) (time.Time, error) {
	sched, err := s.parser.Parse(expression)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expression, err)
	}
	return sched.Next(from), nil
}

// Stop shuts the loop down and waits for the job in progress to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
