package engine

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const maxSummaryLen = 200

// Summarizer is implemented by outputs that can describe themselves briefly.
type Summarizer interface {
	Summary() string
}

// AssetResult is the outcome of one asset within a run.
type AssetResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	// Output is retained only for assets with no downstream consumer in the
	// run; intermediate outputs are released once consumed.
	Output  any    `json:"-"`
	Summary string `json:"summary,omitempty"`
	Reason  string `json:"reason,omitempty"`
	// Upstream names the upstream that caused a skip.
	Upstream   string        `json:"upstream,omitempty"`
	Err        error         `json:"-"`
	DurationMS int64         `json:"duration_ms"`
	Duration   time.Duration `json:"-"`
}

// RunResult is the outcome of one run of a job.
type RunResult struct {
	RunID      string         `json:"run_id"`
	Job        string         `json:"job"`
	Time       time.Time      `json:"time"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Assets     []*AssetResult `json:"assets"`
	Success    bool           `json:"success"`
	// Err is set when the run was aborted by a graph, configuration or
	// resource error.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
	// Resources names the resources opened during the run, in acquisition
	// order.
	Resources []string `json:"resources,omitempty"`
	// ReleaseErr holds errors from closing resources at the end of the run.
	ReleaseErr error `json:"-"`
}

// Asset returns the result for the named asset.
func (r *RunResult) Asset(name string) (*AssetResult, bool) {
	for _, a := range r.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Count returns how many assets ended with the given status.
func (r *RunResult) Count(status string) int {
	n := 0
	for _, a := range r.Assets {
		if a.Status == status {
			n++
		}
	}
	return n
}

func summarize(out any) string {
	var s string
	switch v := out.(type) {
	case nil:
		return ""
	case Summarizer:
		s = v.Summary()
	case string:
		s = v
	default:
		s = fmt.Sprintf("%v", v)
	}
	if len(s) > maxSummaryLen {
		n := maxSummaryLen
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n] + "..."
	}
	return s
}
