package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/seantiz/tablesnap/internal/scheduler"
)

// fakeJobs is an in-memory JobController.
type fakeJobs struct {
	mu        sync.Mutex
	statuses  []scheduler.JobStatus
	running   map[string]bool
	triggered []string
	err       error
}

func newFakeJobs(names ...string) *fakeJobs {
	f := &fakeJobs{running: make(map[string]bool)}
	for _, n := range names {
		f.statuses = append(f.statuses, scheduler.JobStatus{Job: n, Cron: "0 0 * * *", Timezone: "UTC"})
	}
	return f
}

func (f *fakeJobs) Jobs() []scheduler.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduler.JobStatus(nil), f.statuses...)
}

func (f *fakeJobs) Job(name string) (scheduler.JobStatus, bool) {
	for _, st := range f.Jobs() {
		if st.Job == name {
			return st, true
		}
	}
	return scheduler.JobStatus{}, false
}

func (f *fakeJobs) Trigger(_ context.Context, name string) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.Job(name); !ok {
		return fmt.Errorf("%w: %s", scheduler.ErrUnknownJob, name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running[name] {
		return fmt.Errorf("%w: %s", scheduler.ErrJobRunning, name)
	}
	f.running[name] = true
	f.triggered = append(f.triggered, name)
	return nil
}

func newTestServer(t *testing.T, jobs JobController) *Server {
	t.Helper()
	if jobs == nil {
		jobs = newFakeJobs()
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewServer(":0", jobs, logger)
}

func TestPanicRecovery(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, nil)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/v1/jobs", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /v1/jobs: %v", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", newFakeJobs(), slog.New(slog.NewJSONHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunReportsListenError(t *testing.T) {
	srv := NewServer("256.0.0.1:bad", newFakeJobs(), slog.New(slog.NewJSONHandler(io.Discard, nil)))

	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}
