package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for POST /v1/jobs/{name}/runs.
const (
	triggerStarted  = "started"
	triggerConflict = "conflict"
	triggerUnknown  = "unknown_job"
	triggerError    = "error"
)

var (
	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablesnap",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by route, method and response code.",
		},
		[]string{"route", "method", "code"},
	)

	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tablesnap",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"route"},
	)

	manualTriggers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablesnap",
			Subsystem: "api",
			Name:      "manual_triggers_total",
			Help:      "Manual job trigger requests by outcome.",
		},
		[]string{"job", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(apiRequests, apiLatency, manualTriggers)
}

// instrument counts every request under its chi route pattern, so job names
// in the path never become label values.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		apiRequests.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
		apiLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// recordTrigger counts a manual trigger. Requests for unknown jobs are
// counted without the requested name.
func recordTrigger(job, outcome string) {
	if outcome == triggerUnknown {
		job = ""
	}
	manualTriggers.WithLabelValues(job, outcome).Inc()
}
