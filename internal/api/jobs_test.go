package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestListJobs(t *testing.T) {
	srv := newTestServer(t, newFakeJobs("mariadb_to_s3_job", "other_job"))

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs")
	if err != nil {
		t.Fatalf("GET /v1/jobs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body listJobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Jobs) != 2 || body.Jobs[0].Job != "mariadb_to_s3_job" || body.Jobs[0].Timezone != "UTC" {
		t.Errorf("jobs = %+v", body.Jobs)
	}
}

func TestListJobsEmpty(t *testing.T) {
	srv := newTestServer(t, newFakeJobs())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"jobs\":[]}\n" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestGetJob(t *testing.T) {
	srv := newTestServer(t, newFakeJobs("mariadb_to_s3_job"))

	tests := []struct {
		path   string
		status int
	}{
		{"/v1/jobs/mariadb_to_s3_job", http.StatusOK},
		{"/v1/jobs/ghost", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.status {
			t.Errorf("GET %s status = %d, want %d", tt.path, rec.Code, tt.status)
		}
	}
}

func TestTriggerJob(t *testing.T) {
	jobs := newFakeJobs("mariadb_to_s3_job")
	srv := newTestServer(t, jobs)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	post := func(path string) *http.Response {
		t.Helper()
		resp, err := http.Post(ts.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := post("/v1/jobs/mariadb_to_s3_job/runs")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first trigger status = %d, want 202", resp.StatusCode)
	}
	var body triggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Job != "mariadb_to_s3_job" || body.Status != "started" {
		t.Errorf("body = %+v", body)
	}

	if resp := post("/v1/jobs/mariadb_to_s3_job/runs"); resp.StatusCode != http.StatusConflict {
		t.Errorf("second trigger status = %d, want 409", resp.StatusCode)
	}
	if resp := post("/v1/jobs/ghost/runs"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", resp.StatusCode)
	}
	if len(jobs.triggered) != 1 {
		t.Errorf("triggered = %v, want one run", jobs.triggered)
	}
}

func TestTriggerJobInternalError(t *testing.T) {
	jobs := newFakeJobs("mariadb_to_s3_job")
	jobs.err = errors.New("boom")
	srv := newTestServer(t, jobs)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/mariadb_to_s3_job/runs", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestTriggerJobRecordsOutcomes(t *testing.T) {
	jobs := newFakeJobs("nightly_orders")
	srv := newTestServer(t, jobs)

	count := func(job, outcome string) float64 {
		return testutil.ToFloat64(manualTriggers.WithLabelValues(job, outcome))
	}
	before := map[string]float64{
		triggerStarted:  count("nightly_orders", triggerStarted),
		triggerConflict: count("nightly_orders", triggerConflict),
		triggerUnknown:  count("", triggerUnknown),
	}

	for _, path := range []string{
		"/v1/jobs/nightly_orders/runs",
		"/v1/jobs/nightly_orders/runs",
		"/v1/jobs/ghost/runs",
	} {
		srv.Router().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	tests := []struct {
		job, outcome string
	}{
		{"nightly_orders", triggerStarted},
		{"nightly_orders", triggerConflict},
		{"", triggerUnknown},
	}
	for _, tt := range tests {
		if got := count(tt.job, tt.outcome) - before[tt.outcome]; got != 1 {
			t.Errorf("%s triggers = %v, want 1", tt.outcome, got)
		}
	}
	if got := testutil.ToFloat64(manualTriggers.WithLabelValues("ghost", triggerUnknown)); got != 0 {
		t.Errorf("unknown job name used as label: %v", got)
	}
}
