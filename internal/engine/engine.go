package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seantiz/tablesnap/internal/asset"
	"github.com/seantiz/tablesnap/internal/config"
	"github.com/seantiz/tablesnap/internal/model"
	"github.com/seantiz/tablesnap/internal/resource"
)

// Engine executes jobs over an asset graph.
type Engine struct {
	graph     *asset.Graph
	resources *resource.Registry
	sink      Sink
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used by Run to stamp runs.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. A nil sink logs events through logger.
func New(g *asset.Graph, resources *resource.Registry, sink Sink, logger *slog.Logger, opts ...Option) *Engine {
	if sink == nil {
		sink = SlogSink{Logger: logger}
	}
	e := &Engine{
		graph:     g,
		resources: resources,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes job stamped with the engine clock.
func (e *Engine) Run(ctx context.Context, job asset.Job, env config.Environment) *RunResult {
	return e.RunAt(ctx, job, env, e.now())
}

// run is the mutable state of one run. It is owned by the goroutine calling
// RunAt and discarded when the run returns.
type run struct {
	*RunResult
	order    []*asset.Asset
	byName   map[string]*AssetResult
	outputs  map[string]any
	pending  map[string]int // consumers not yet settled, per asset
	provider *resource.Provider
	logger   *slog.Logger
}

// RunAt executes job with at as the run timestamp. It always returns a
// result; aborted runs carry the cause in RunResult.Err.
func (e *Engine) RunAt(ctx context.Context, job asset.Job, env config.Environment, at time.Time) *RunResult {
	res := &RunResult{
		RunID:     model.NewRunID(at),
		Job:       job.Name,
		Time:      at,
		StartedAt: time.Now().UTC(),
	}
	r := &run{
		RunResult: res,
		byName:    make(map[string]*AssetResult),
		outputs:   make(map[string]any),
		pending:   make(map[string]int),
		provider:  e.resources.Provider(env),
		logger:    e.logger.With("run_id", res.RunID, "job", job.Name),
	}

	e.emit(ctx, r, EventRunStarted, "", "run started", nil)
	defer e.finish(ctx, r)
	defer func() {
		res.Resources = r.provider.Acquired()
		if err := r.provider.ReleaseAll(context.WithoutCancel(ctx)); err != nil {
			res.ReleaseErr = err
			r.logger.Warn("release resources", "resources", res.Resources, "error", err)
		}
	}()

	order, err := e.graph.ResolveOrder(job.Selection)
	if err != nil {
		res.Err = fmt.Errorf("resolve order: %w", err)
		return res
	}
	r.order = order
	for _, a := range order {
		ar := &AssetResult{Name: a.Name, Status: model.StatusPending}
		res.Assets = append(res.Assets, ar)
		r.byName[a.Name] = ar
		r.pending[a.Name] = len(asset.Downstream(order, a.Name))
	}

	// Configuration problems surface before any asset executes.
	configs := make(map[string]config.Resolved, len(order))
	for _, a := range order {
		cfg, err := config.Resolve(a.Config, env, nil)
		if err != nil {
			e.fail(ctx, r, a, err)
			e.abort(ctx, r, 0, a.Name)
			res.Err = fmt.Errorf("resolve config for %q: %w", a.Name, err)
			return res
		}
		configs[a.Name] = cfg
	}

	for i, a := range order {
		ar := r.byName[a.Name]
		if ar.Status != model.StatusPending {
			continue
		}

		if err := ctx.Err(); err != nil {
			e.abort(ctx, r, i, "")
			res.Err = fmt.Errorf("%w: %w", ErrRunAborted, err)
			return res
		}

		if up := r.unsuccessfulUpstream(a); up != nil {
			missing := &MissingUpstreamOutputError{Asset: a.Name, Upstream: up.Name, UpstreamStatus: up.Status}
			ar.Upstream = up.Name
			e.skip(ctx, r, a, missing)
			continue
		}

		handles := make(map[string]any, len(a.Resources))
		for _, name := range a.Resources {
			h, err := r.provider.Acquire(ctx, name)
			if err != nil {
				e.fail(ctx, r, a, err)
				e.abort(ctx, r, i+1, a.Name)
				res.Err = err
				return res
			}
			handles[name] = h
		}

		upstream := make(map[string]any, len(a.Upstreams))
		for _, name := range a.Upstreams {
			upstream[name] = r.outputs[name]
		}

		e.execute(ctx, r, a, asset.Input{
			Run:       asset.RunInfo{ID: res.RunID, Job: job.Name, Time: at},
			Config:    configs[a.Name],
			Upstream:  upstream,
			Resources: handles,
			Logger:    r.logger.With("asset", a.Name),
		})
	}
	return res
}

// execute invokes one asset and records its outcome.
func (e *Engine) execute(ctx context.Context, r *run, a *asset.Asset, in asset.Input) {
	ar := r.byName[a.Name]
	e.transition(r, ar, model.StatusRunning)
	e.emit(ctx, r, EventAssetStarted, a.Name, "asset started", nil)

	start := time.Now()
	out, err := invoke(ctx, a, in)
	ar.Duration = time.Since(start)
	ar.DurationMS = ar.Duration.Milliseconds()
	assetDuration.WithLabelValues(a.Name).Observe(ar.Duration.Seconds())

	if err != nil {
		e.fail(ctx, r, a, &AssetComputationError{Asset: a.Name, Err: err})
		return
	}

	e.transition(r, ar, model.StatusSucceeded)
	ar.Summary = summarize(out)
	if r.pending[a.Name] > 0 {
		r.outputs[a.Name] = out
	} else {
		ar.Output = out
	}
	r.settle(a)
	assetRunsTotal.WithLabelValues(a.Name, model.StatusSucceeded).Inc()
	e.emit(ctx, r, EventAssetSucceeded, a.Name, "asset succeeded", nil)
}

// invoke runs the computation, converting a panic into an error.
func invoke(ctx context.Context, a *asset.Asset, in asset.Input) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return a.Compute(ctx, in)
}

func (e *Engine) fail(ctx context.Context, r *run, a *asset.Asset, err error) {
	ar := r.byName[a.Name]
	e.transition(r, ar, model.StatusFailed)
	ar.Err = err
	ar.Reason = err.Error()
	r.settle(a)
	assetRunsTotal.WithLabelValues(a.Name, model.StatusFailed).Inc()
	e.emit(ctx, r, EventAssetFailed, a.Name, "asset failed", err)
}

func (e *Engine) skip(ctx context.Context, r *run, a *asset.Asset, reason error) {
	ar := r.byName[a.Name]
	e.transition(r, ar, model.StatusSkipped)
	ar.Err = reason
	ar.Reason = reason.Error()
	r.settle(a)
	assetRunsTotal.WithLabelValues(a.Name, model.StatusSkipped).Inc()
	e.emit(ctx, r, EventAssetSkipped, a.Name, "asset skipped", reason)
}

// abort skips every still-pending asset from position from onwards. cause
// names the asset that stopped the run, if any.
func (e *Engine) abort(ctx context.Context, r *run, from int, cause string) {
	reason := ErrRunAborted
	if cause != "" {
		reason = fmt.Errorf("%w: asset %q failed", ErrRunAborted, cause)
	}
	for _, a := range r.order[from:] {
		if r.byName[a.Name].Status == model.StatusPending {
			e.skip(ctx, r, a, reason)
		}
	}
	clear(r.outputs)
}

func (e *Engine) transition(r *run, ar *AssetResult, to string) {
	if !model.ValidTransition(ar.Status, to) {
		r.logger.Error("invalid asset status transition", "asset", ar.Name, "from", ar.Status, "to", to)
	}
	ar.Status = to
}

// unsuccessfulUpstream returns the first upstream of a that did not succeed.
func (r *run) unsuccessfulUpstream(a *asset.Asset) *AssetResult {
	for _, name := range a.Upstreams {
		if up := r.byName[name]; up.Status != model.StatusSucceeded {
			return up
		}
	}
	return nil
}

// settle records that a has been attempted or skipped, releasing any upstream
// output that no remaining consumer needs.
func (r *run) settle(a *asset.Asset) {
	for _, name := range a.Upstreams {
		r.pending[name]--
		if r.pending[name] <= 0 {
			delete(r.outputs, name)
		}
	}
}

func (e *Engine) finish(ctx context.Context, r *run) {
	res := r.RunResult
	res.FinishedAt = time.Now().UTC()
	for _, ar := range res.Assets {
		if !model.Terminal(ar.Status) {
			r.logger.Error("asset left unfinished", "asset", ar.Name, "status", ar.Status)
		}
	}
	res.Success = res.Err == nil && res.Count(model.StatusSucceeded) == len(res.Assets)

	var err error
	switch {
	case res.Err != nil:
		err = res.Err
		res.Error = res.Err.Error()
	case !res.Success:
		err = fmt.Errorf("%d failed, %d skipped", res.Count(model.StatusFailed), res.Count(model.StatusSkipped))
		res.Error = err.Error()
	}

	outcome := outcomeSucceeded
	if !res.Success {
		outcome = outcomeFailed
	}
	runsTotal.WithLabelValues(res.Job, outcome).Inc()
	runDuration.WithLabelValues(res.Job).Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())

	e.emit(ctx, r, EventRunFinished, "", "run finished", err)
}

func (e *Engine) emit(ctx context.Context, r *run, kind EventKind, assetName, msg string, err error) {
	e.sink.Emit(ctx, Event{
		Kind:    kind,
		RunID:   r.RunID,
		Job:     r.Job,
		Asset:   assetName,
		Time:    time.Now().UTC(),
		Message: msg,
		Err:     err,
	})
}
