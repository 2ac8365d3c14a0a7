package engine

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for run outcomes.
const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablesnap_runs_total",
			Help: "Total number of job runs by outcome.",
		},
		[]string{"job", "status"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablesnap_run_duration_seconds",
			Help:    "Wall-clock duration of job runs, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	assetRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablesnap_asset_runs_total",
			Help: "Total number of asset outcomes by final status.",
		},
		[]string{"asset", "status"},
	)

	assetDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablesnap_asset_duration_seconds",
			Help:    "Duration of asset computations, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"asset"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(assetRunsTotal)
	prometheus.MustRegister(assetDuration)
}
