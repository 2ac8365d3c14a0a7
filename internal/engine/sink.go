package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventKind names a run or asset state transition.
type EventKind string

// Event kinds.
const (
	EventRunStarted     EventKind = "run_started"
	EventRunFinished    EventKind = "run_finished"
	EventAssetStarted   EventKind = "asset_started"
	EventAssetSucceeded EventKind = "asset_succeeded"
	EventAssetFailed    EventKind = "asset_failed"
	EventAssetSkipped   EventKind = "asset_skipped"
)

// Event is one state transition reported to a Sink.
type Event struct {
	Kind    EventKind
	RunID   string
	Job     string
	Asset   string
	Time    time.Time
	Message string
	Err     error
}

// Sink receives run and asset state transitions. Implementations must not
// block for long; Emit is called on the run's goroutine.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SlogSink writes events to a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

// Emit implements Sink.
func (s SlogSink) Emit(ctx context.Context, ev Event) {
	attrs := []any{"event", string(ev.Kind), "run_id", ev.RunID, "job", ev.Job}
	if ev.Asset != "" {
		attrs = append(attrs, "asset", ev.Asset)
	}
	if ev.Err != nil {
		attrs = append(attrs, "error", ev.Err.Error())
	}

	msg := ev.Message
	if msg == "" {
		msg = string(ev.Kind)
	}
	switch {
	case ev.Kind == EventAssetFailed, ev.Kind == EventRunFinished && ev.Err != nil:
		s.Logger.ErrorContext(ctx, msg, attrs...)
	case ev.Kind == EventAssetSkipped:
		s.Logger.WarnContext(ctx, msg, attrs...)
	default:
		s.Logger.InfoContext(ctx, msg, attrs...)
	}
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink.
func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the recorded event kinds for one asset, or for the run itself
// when asset is empty.
func (r *Recorder) Kinds(asset string) []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventKind
	for _, ev := range r.events {
		if ev.Asset == asset {
			out = append(out, ev.Kind)
		}
	}
	return out
}
