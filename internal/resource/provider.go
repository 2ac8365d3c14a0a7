package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/seantiz/tablesnap/internal/config"
)

// AcquisitionError reports a resource that could not be constructed.
type AcquisitionError struct {
	Resource string
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire resource %q: %v", e.Resource, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// ErrReleased is returned by Acquire after ReleaseAll has run.
var ErrReleased = errors.New("provider already released")

type acquired struct {
	name   string
	handle any
	close  CloseFunc
}

// Provider owns the handles of a single run.
type Provider struct {
	registry *Registry
	env      config.Environment

	mu       sync.Mutex
	handles  map[string]any
	order    []acquired
	released bool
}

// Acquire returns the handle for name, opening it on first use. Repeated
// calls within the run return the same handle.
func (p *Provider) Acquire(ctx context.Context, name string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return nil, &AcquisitionError{Resource: name, Err: ErrReleased}
	}
	if h, ok := p.handles[name]; ok {
		return h, nil
	}

	decl, ok := p.registry.lookup(name)
	if !ok {
		return nil, &AcquisitionError{Resource: name, Err: errors.New("resource is not declared")}
	}

	cfg, err := config.Resolve(decl.Config, p.env, nil)
	if err != nil {
		return nil, &AcquisitionError{Resource: name, Err: err}
	}

	h, err := decl.Open(ctx, cfg)
	if err != nil {
		return nil, &AcquisitionError{Resource: name, Err: err}
	}

	p.handles[name] = h
	p.order = append(p.order, acquired{name: name, handle: h, close: decl.Close})
	return h, nil
}

// Acquired returns the names of acquired resources in acquisition order.
func (p *Provider) Acquired() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, len(p.order))
	for i, a := range p.order {
		names[i] = a.name
	}
	return names
}

// ReleaseAll closes every acquired handle in reverse acquisition order. Only
// the first call has any effect; close errors are joined.
func (p *Provider) ReleaseAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return nil
	}
	p.released = true

	var errs []error
	for i := len(p.order) - 1; i >= 0; i-- {
		a := p.order[i]
		if err := closeHandle(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("release resource %q: %w", a.name, err))
		}
	}
	p.order = nil
	clear(p.handles)
	return errors.Join(errs...)
}

func closeHandle(ctx context.Context, a acquired) error {
	if a.close != nil {
		return a.close(ctx, a.handle)
	}
	if c, ok := a.handle.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
