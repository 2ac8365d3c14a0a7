package resource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/seantiz/tablesnap/internal/config"
)

// OpenFunc constructs a handle from its resolved configuration.
type OpenFunc func(ctx context.Context, cfg config.Resolved) (any, error)

// CloseFunc releases a handle produced by the matching OpenFunc.
type CloseFunc func(ctx context.Context, handle any) error

// Declaration describes how to build one named resource. When Close is nil and
// the handle implements io.Closer, the handle's Close method is used.
type Declaration struct {
	Name   string
	Config config.Schema
	Open   OpenFunc
	Close  CloseFunc
}

// Registry holds resource declarations keyed by name.
type Registry struct {
	mu    sync.RWMutex
	decls map[string]Declaration
}

// NewRegistry creates a registry with the given declarations.
func NewRegistry(decls ...Declaration) (*Registry, error) {
	r := &Registry{decls: make(map[string]Declaration)}
	for _, d := range decls {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a declaration. Names must be unique.
func (r *Registry) Register(d Declaration) error {
	if d.Name == "" {
		return errors.New("resource name is required")
	}
	if d.Open == nil {
		return fmt.Errorf("resource %q has no open function", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.decls[d.Name]; dup {
		return fmt.Errorf("duplicate resource %q", d.Name)
	}
	r.decls[d.Name] = d
	return nil
}

// Has reports whether name is declared.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decls[name]
	return ok
}

// Names returns the declared resource names sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.decls))
	for name := range r.decls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (Declaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decls[name]
	return d, ok
}

// Provider returns a fresh per-run provider that resolves constructor
// parameters from env.
func (r *Registry) Provider(env config.Environment) *Provider {
	return &Provider{
		registry: r,
		env:      env,
		handles:  make(map[string]any),
	}
}
