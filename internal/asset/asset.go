package asset

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seantiz/tablesnap/internal/config"
)

// ComputeFunc is the body of an asset. It returns the asset's output or an
// error; it must not read configuration from anywhere but Input.
type ComputeFunc func(ctx context.Context, in Input) (any, error)

// Asset is a named computation unit with declared dependencies.
type Asset struct {
	Name        string
	Description string
	// Upstreams are the assets whose outputs this asset consumes, keyed by
	// name in Input.Upstream.
	Upstreams []string
	// Config is resolved before the run starts and delivered as Input.Config.
	Config config.Schema
	// Resources names the shared handles delivered as Input.Resources.
	Resources []string
	Compute   ComputeFunc
}

// RunInfo identifies the run an asset executes in.
type RunInfo struct {
	ID   string
	Job  string
	Time time.Time
}

// Input is everything an asset computation may depend on.
type Input struct {
	Run       RunInfo
	Config    config.Resolved
	Upstream  map[string]any
	Resources map[string]any
	Logger    *slog.Logger
}

// Upstream returns the output of the named upstream asserted to T.
func Upstream[T any](in Input, name string) (T, error) {
	var zero T
	v, ok := in.Upstream[name]
	if !ok {
		return zero, fmt.Errorf("upstream %q not provided", name)
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("upstream %q has type %T, want %T", name, v, zero)
	}
	return out, nil
}

// Resource returns the named resource handle asserted to T.
func Resource[T any](in Input, name string) (T, error) {
	var zero T
	v, ok := in.Resources[name]
	if !ok {
		return zero, fmt.Errorf("resource %q not provided", name)
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("resource %q has type %T, want %T", name, v, zero)
	}
	return out, nil
}

// Job is a named, fixed selection of assets triggered as a whole.
type Job struct {
	Name      string
	Selection []string
}
