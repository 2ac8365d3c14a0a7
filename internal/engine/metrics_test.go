package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/seantiz/tablesnap/internal/asset"
	"github.com/seantiz/tablesnap/internal/config"
	"github.com/seantiz/tablesnap/internal/model"
	"github.com/seantiz/tablesnap/internal/resource"
)

func TestMetricsRegistered(t *testing.T) {
	// Touch the vectors so each family has a series to gather.
	runsTotal.WithLabelValues("nightly", outcomeSucceeded)
	runDuration.WithLabelValues("nightly")
	assetRunsTotal.WithLabelValues("nightly", model.StatusSucceeded)
	assetDuration.WithLabelValues("nightly")

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	expected := []string{
		"tablesnap_runs_total",
		"tablesnap_run_duration_seconds",
		"tablesnap_asset_runs_total",
		"tablesnap_asset_duration_seconds",
	}

	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
	}

	for _, name := range expected {
		if !found[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestRunRecordsOutcomeCounters(t *testing.T) {
	g, err := asset.NewGraph(asset.Asset{
		Name:    "metrics_sample_asset",
		Compute: func(context.Context, asset.Input) (any, error) { return nil, nil },
	})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	reg, _ := resource.NewRegistry()
	eng := New(g, reg, &Recorder{}, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	job := asset.Job{Name: "metrics_sample_job", Selection: []string{"metrics_sample_asset"}}
	before := testutil.ToFloat64(runsTotal.WithLabelValues(job.Name, outcomeSucceeded))
	eng.RunAt(context.Background(), job, config.Environment{}, time.Now())
	after := testutil.ToFloat64(runsTotal.WithLabelValues(job.Name, outcomeSucceeded))

	if after-before != 1 {
		t.Errorf("runs_total delta = %v, want 1", after-before)
	}
	if got := testutil.ToFloat64(assetRunsTotal.WithLabelValues("metrics_sample_asset", model.StatusSucceeded)); got < 1 {
		t.Errorf("asset_runs_total = %v, want >= 1", got)
	}
}
