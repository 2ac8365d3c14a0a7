package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/seantiz/tablesnap/internal/asset"
	"github.com/seantiz/tablesnap/internal/config"
	"github.com/seantiz/tablesnap/internal/engine"
)

// fakeRunner records runs and optionally blocks until released.
type fakeRunner struct {
	mu      sync.Mutex
	times   []time.Time
	envs    []config.Environment
	block   chan struct{}
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeRunner) RunAt(ctx context.Context, job asset.Job, env config.Environment, at time.Time) *engine.RunResult {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.times = append(f.times, at)
	f.envs = append(f.envs, env)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	now := time.Now()
	return &engine.RunResult{Job: job.Name, Time: at, StartedAt: now, FinishedAt: now, Success: true}
}

func (f *fakeRunner) runs() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.times...)
}

func testJob(name string) asset.Job {
	return asset.Job{Name: name, Selection: []string{"a"}}
}

func newTestScheduler(t *testing.T, runner Runner, schedules []Schedule, opts ...Option) *Scheduler {
	t.Helper()
	opts = append([]Option{
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		WithEnvironment(func() config.Environment { return config.Environment{"K": "v"} }),
	}, opts...)
	s, err := New(runner, schedules, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewRejectsInvalidSchedules(t *testing.T) {
	tests := []struct {
		name      string
		schedules []Schedule
	}{
		{"bad cron", []Schedule{{Job: testJob("a"), Cron: "not a cron"}}},
		{"too many fields", []Schedule{{Job: testJob("a"), Cron: "0 0 0 * * * *"}}},
		{"bad timezone", []Schedule{{Job: testJob("a"), Cron: "0 0 * * *", Timezone: "Mars/Olympus"}}},
		{"duplicate job", []Schedule{{Job: testJob("a"), Cron: "@daily"}, {Job: testJob("a"), Cron: "@hourly"}}},
		{"no job name", []Schedule{{Cron: "@daily"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&fakeRunner{}, tt.schedules); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNextFireTime(t *testing.T) {
	s := newTestScheduler(t, &fakeRunner{}, []Schedule{
		{Job: testJob("nightly"), Cron: "0 0 * * *", Timezone: "UTC"},
		{Job: testJob("ny_morning"), Cron: "0 9 * * *", Timezone: "America/New_York"},
		{Job: testJob("every_second"), Cron: "* * * * * *"},
		{Job: testJob("daily"), Cron: "@daily"},
	})

	from := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		job  string
		want time.Time
	}{
		{"nightly", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"ny_morning", time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)},
		{"every_second", from.Add(time.Second)},
		{"daily", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := s.Next(tt.job, from)
		if err != nil {
			t.Fatalf("Next(%s): %v", tt.job, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("Next(%s) = %v, want %v", tt.job, got.UTC(), tt.want)
		}
	}

	if _, err := s.Next("ghost", from); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Next(ghost) err = %v, want ErrUnknownJob", err)
	}
}

func TestFireSkipsWhileRunning(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s := newTestScheduler(t, runner, []Schedule{{Job: testJob("job"), Cron: "@daily"}})
	skippedBefore := testutil.ToFloat64(firesTotal.WithLabelValues("job", fireSkipped))

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !s.Fire(context.Background(), "job", first) {
		t.Fatal("first fire did not start")
	}
	waitFor(t, func() bool { return len(runner.runs()) == 1 })

	if s.Fire(context.Background(), "job", first.Add(24*time.Hour)) {
		t.Error("second fire started while the first run was executing")
	}
	if err := s.Trigger(context.Background(), "job"); !errors.Is(err, ErrJobRunning) {
		t.Errorf("Trigger err = %v, want ErrJobRunning", err)
	}
	if st, _ := s.Job("job"); !st.Running {
		t.Error("status does not report the running job")
	}

	close(runner.block)
	s.Wait()

	if got := runner.maxSeen.Load(); got != 1 {
		t.Errorf("max concurrent runs = %d, want 1", got)
	}
	if got := testutil.ToFloat64(firesTotal.WithLabelValues("job", fireSkipped)) - skippedBefore; got != 2 {
		t.Errorf("skipped fires = %v, want 2", got)
	}

	third := first.Add(48 * time.Hour)
	if !s.Fire(context.Background(), "job", third) {
		t.Fatal("fire after completion did not start")
	}
	s.Wait()

	runs := runner.runs()
	if len(runs) != 2 || !runs[0].Equal(first) || !runs[1].Equal(third) {
		t.Errorf("run times = %v", runs)
	}
}

func TestDifferentJobsRunConcurrently(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s := newTestScheduler(t, runner, []Schedule{
		{Job: testJob("a"), Cron: "@daily"},
		{Job: testJob("b"), Cron: "@daily"},
	})

	now := time.Now()
	if !s.Fire(context.Background(), "a", now) || !s.Fire(context.Background(), "b", now) {
		t.Fatal("independent jobs should both start")
	}
	waitFor(t, func() bool { return runner.active.Load() == 2 })
	close(runner.block)
	s.Wait()
}

func TestTriggerRecordsLastResult(t *testing.T) {
	runner := &fakeRunner{}
	var hooked atomic.Int32
	s := newTestScheduler(t, runner, []Schedule{{Job: testJob("job"), Cron: "0 0 * * *", Timezone: "UTC"}},
		WithResultHook(func(*engine.RunResult) { hooked.Add(1) }))

	if err := s.Trigger(context.Background(), "ghost"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Trigger(ghost) err = %v, want ErrUnknownJob", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Trigger(ctx, "job"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	cancel()
	s.Wait()

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("Jobs() = %d entries, want 1", len(jobs))
	}
	st := jobs[0]
	if st.Running || st.Last == nil || !st.Last.Success || st.Timezone != "UTC" || st.Cron != "0 0 * * *" {
		t.Errorf("status = %+v", st)
	}
	if hooked.Load() != 1 {
		t.Errorf("result hook called %d times, want 1", hooked.Load())
	}
	if runner.envs[0]["K"] != "v" {
		t.Errorf("run environment = %v", runner.envs[0])
	}
}

func TestStartFiresOnSchedule(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestScheduler(t, runner, []Schedule{{Job: testJob("tick"), Cron: "* * * * * *"}})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	waitFor(t, func() bool { return len(runner.runs()) >= 1 })

	if st, _ := s.Job("tick"); st.Next.IsZero() {
		t.Error("status has no next fire time")
	}
	cancel()
	s.Wait()

	for _, at := range runner.runs() {
		if at.Nanosecond() != 0 {
			t.Errorf("run time %v is not the scheduled fire time", at)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 5s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
