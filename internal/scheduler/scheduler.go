// Package scheduler fires jobs on cron schedules in a fixed timezone. A job
// never runs concurrently with itself: a fire time that arrives while the
// previous run is still executing is skipped, not queued.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"github.com/seantiz/tablesnap/internal/asset"
	"github.com/seantiz/tablesnap/internal/config"
	"github.com/seantiz/tablesnap/internal/engine"
)

var (
	// ErrUnknownJob is returned for a job with no schedule.
	ErrUnknownJob = errors.New("unknown job")
	// ErrJobRunning is returned when a job's previous run has not finished.
	ErrJobRunning = errors.New("job is already running")
)

// parser accepts the standard five fields, an optional leading seconds field
// and descriptors such as @daily.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Runner executes a job with a given run timestamp.
type Runner interface {
	RunAt(ctx context.Context, job asset.Job, env config.Environment, at time.Time) *engine.RunResult
}

// Schedule binds a job to a cron expression evaluated in Timezone. An empty
// timezone means UTC.
type Schedule struct {
	Job      asset.Job
	Cron     string
	Timezone string
}

// JobStatus is a point-in-time view of one scheduled job.
type JobStatus struct {
	Job      string            `json:"job"`
	Cron     string            `json:"cron"`
	Timezone string            `json:"timezone"`
	Next     time.Time         `json:"next_fire,omitzero"`
	Running  bool              `json:"running"`
	Last     *engine.RunResult `json:"last_run,omitempty"`
}

type entry struct {
	sched   Schedule
	spec    cron.Schedule
	loc     *time.Location
	running atomic.Bool

	mu   sync.Mutex
	next time.Time
	last *engine.RunResult
}

func (e *entry) status() JobStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return JobStatus{
		Job:      e.sched.Job.Name,
		Cron:     e.sched.Cron,
		Timezone: e.loc.String(),
		Next:     e.next,
		Running:  e.running.Load(),
		Last:     e.last,
	}
}

// Scheduler triggers runs. Schedules are fixed at construction.
type Scheduler struct {
	runner  Runner
	entries []*entry
	byJob   map[string]*entry
	env     func() config.Environment
	logger  *slog.Logger
	now     func() time.Time
	onDone  func(*engine.RunResult)
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithEnvironment sets the function that supplies each run's environment.
func WithEnvironment(env func() config.Environment) Option {
	return func(s *Scheduler) { s.env = env }
}

// WithLogger sets the logger for fire and outcome messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithClock sets the clock used to compute fire times.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithResultHook registers a function called with every finished run.
func WithResultHook(fn func(*engine.RunResult)) Option {
	return func(s *Scheduler) { s.onDone = fn }
}

// New validates the schedules. Invalid cron expressions, unknown timezones
// and duplicate jobs are errors.
func New(runner Runner, schedules []Schedule, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		runner: runner,
		byJob:  make(map[string]*entry, len(schedules)),
		env:    config.EnvironFromOS,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, sc := range schedules {
		if sc.Job.Name == "" {
			return nil, errors.New("schedule has no job name")
		}
		if _, dup := s.byJob[sc.Job.Name]; dup {
			return nil, fmt.Errorf("job %q scheduled twice", sc.Job.Name)
		}
		spec, err := parser.Parse(sc.Cron)
		if err != nil {
			return nil, fmt.Errorf("job %q: parse cron %q: %w", sc.Job.Name, sc.Cron, err)
		}
		tz := sc.Timezone
		if tz == "" {
			tz = "UTC"
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("job %q: load timezone %q: %w", sc.Job.Name, tz, err)
		}

		e := &entry{sched: sc, spec: spec, loc: loc}
		s.entries = append(s.entries, e)
		s.byJob[sc.Job.Name] = e
	}
	return s, nil
}

// Next returns the first fire time of job strictly after t, in the job's
// timezone.
func (s *Scheduler) Next(job string, t time.Time) (time.Time, error) {
	e, ok := s.byJob[job]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrUnknownJob, job)
	}
	return e.spec.Next(t.In(e.loc)), nil
}

// Start launches one timer loop per schedule. Loops stop when ctx is
// cancelled; runs already started keep going until Wait returns.
func (s *Scheduler) Start(ctx context.Context) {
	for _, e := range s.entries {
		s.wg.Go(func() { s.loop(ctx, e) })
	}
	s.logger.Info("scheduler started", "jobs", len(s.entries))
}

// Wait blocks until every loop has stopped and every run has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	for {
		now := s.now().In(e.loc)
		next := e.spec.Next(now)
		if next.IsZero() {
			s.logger.Warn("schedule has no future fire time", "job", e.sched.Job.Name, "cron", e.sched.Cron)
			return
		}
		e.mu.Lock()
		e.next = next
		e.mu.Unlock()

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.Fire(ctx, e.sched.Job.Name, next)
	}
}

// Fire starts a run of job stamped with at, unless the job is unknown or its
// previous run is still executing. It reports whether a run started; the run
// itself proceeds in the background.
func (s *Scheduler) Fire(ctx context.Context, job string, at time.Time) bool {
	e, ok := s.byJob[job]
	if !ok {
		s.logger.Error("fire for unknown job", "job", job)
		return false
	}
	if !e.running.CompareAndSwap(false, true) {
		firesTotal.WithLabelValues(job, fireSkipped).Inc()
		s.logger.Warn("previous run still executing, skipping fire", "job", job, "fire_time", at)
		return false
	}
	firesTotal.WithLabelValues(job, fireStarted).Inc()

	s.wg.Go(func() {
		defer e.running.Store(false)
		s.execute(ctx, e, at)
	})
	return true
}

// Trigger starts a run of job now. The run is detached from ctx so it
// outlives the caller, such as an HTTP request.
func (s *Scheduler) Trigger(ctx context.Context, job string) error {
	if _, ok := s.byJob[job]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, job)
	}
	if !s.Fire(context.WithoutCancel(ctx), job, s.now()) {
		return fmt.Errorf("%w: %s", ErrJobRunning, job)
	}
	return nil
}

func (s *Scheduler) execute(ctx context.Context, e *entry, at time.Time) {
	res := s.runner.RunAt(ctx, e.sched.Job, s.env(), at)

	e.mu.Lock()
	e.last = res
	e.mu.Unlock()

	attrs := []any{"job", res.Job, "run_id", res.RunID, "success", res.Success,
		"duration_ms", res.FinishedAt.Sub(res.StartedAt).Milliseconds()}
	if res.Success {
		s.logger.Info("job run finished", attrs...)
	} else {
		s.logger.Error("job run failed", append(attrs, "error", res.Error)...)
	}

	if s.onDone != nil {
		s.onDone(res)
	}
}

// Jobs returns the status of every scheduled job in schedule order.
func (s *Scheduler) Jobs() []JobStatus {
	out := make([]JobStatus, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.status()
	}
	return out
}

// Job returns the status of one job.
func (s *Scheduler) Job(name string) (JobStatus, bool) {
	e, ok := s.byJob[name]
	if !ok {
		return JobStatus{}, false
	}
	return e.status(), true
}
