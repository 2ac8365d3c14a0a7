package scheduler

import "github.com/prometheus/client_golang/prometheus"

const (
	fireStarted = "started"
	fireSkipped = "skipped"
)

var firesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tablesnap_scheduler_fires_total",
		Help: "Schedule fires by job and outcome (started or skipped).",
	},
	[]string{"job", "outcome"},
)

func init() {
	prometheus.MustRegister(firesTotal)
}
