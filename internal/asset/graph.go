package asset

import (
	"errors"
	"fmt"
	"slices"
)

// Graph is the static set of assets, stored in declaration order with a name
// index. A Graph is immutable after NewGraph returns and safe for concurrent
// use.
type Graph struct {
	assets []*Asset
	index  map[string]int
}

// NewGraph builds a graph from assets in declaration order. It rejects empty
// or duplicate names, upstream references to undeclared assets and cycles.
func NewGraph(assets ...Asset) (*Graph, error) {
	g := &Graph{
		assets: make([]*Asset, 0, len(assets)),
		index:  make(map[string]int, len(assets)),
	}
	for i := range assets {
		a := assets[i]
		if a.Name == "" {
			return nil, errors.New("asset name is required")
		}
		if _, dup := g.index[a.Name]; dup {
			return nil, fmt.Errorf("duplicate asset %q", a.Name)
		}
		if a.Compute == nil {
			return nil, fmt.Errorf("asset %q has no computation", a.Name)
		}
		a.Upstreams = slices.Clone(a.Upstreams)
		a.Resources = slices.Clone(a.Resources)
		g.index[a.Name] = len(g.assets)
		g.assets = append(g.assets, &a)
	}

	for _, a := range g.assets {
		for _, up := range a.Upstreams {
			if _, ok := g.index[up]; !ok {
				return nil, &UnknownAssetError{Name: up, ReferencedBy: a.Name}
			}
		}
	}

	all := make([]bool, len(g.assets))
	for i := range all {
		all[i] = true
	}
	if cycle := g.findCycle(all); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}
	return g, nil
}

// Lookup returns the asset with the given name.
func (g *Graph) Lookup(name string) (*Asset, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.assets[i], true
}

// Assets returns all assets in declaration order.
func (g *Graph) Assets() []*Asset {
	out := make([]*Asset, len(g.assets))
	copy(out, g.assets)
	return out
}

// ResolveOrder returns the selection plus its transitive upstream closure in
// an order where every asset follows all of its upstreams. Among assets with
// no ordering constraint between them, declaration order wins.
func (g *Graph) ResolveOrder(selection []string) ([]*Asset, error) {
	included := make([]bool, len(g.assets))
	var include func(name, from string) error
	include = func(name, from string) error {
		i, ok := g.index[name]
		if !ok {
			return &UnknownAssetError{Name: name, ReferencedBy: from}
		}
		if included[i] {
			return nil
		}
		included[i] = true
		for _, up := range g.assets[i].Upstreams {
			if err := include(up, name); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range selection {
		if err := include(name, ""); err != nil {
			return nil, err
		}
	}

	want := 0
	for _, in := range included {
		if in {
			want++
		}
	}

	order := make([]*Asset, 0, want)
	emitted := make([]bool, len(g.assets))
	for len(order) < want {
		next := -1
		for i, a := range g.assets {
			if !included[i] || emitted[i] {
				continue
			}
			if g.upstreamsEmitted(a, emitted) {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, &CycleError{Path: g.findCycle(included)}
		}
		emitted[next] = true
		order = append(order, g.assets[next])
	}
	return order, nil
}

func (g *Graph) upstreamsEmitted(a *Asset, emitted []bool) bool {
	for _, up := range a.Upstreams {
		if !emitted[g.index[up]] {
			return false
		}
	}
	return true
}

// findCycle runs a depth-first search over the upstream edges of the included
// assets and returns the first cycle found, or nil.
func (g *Graph) findCycle(included []bool) []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(g.assets))
	var stack []int

	var visit func(i int) []string
	visit = func(i int) []string {
		state[i] = visiting
		stack = append(stack, i)
		for _, up := range g.assets[i].Upstreams {
			j := g.index[up]
			if !included[j] {
				continue
			}
			switch state[j] {
			case visiting:
				var path []string
				for k := len(stack) - 1; k >= 0; k-- {
					if stack[k] == j {
						for _, s := range stack[k:] {
							path = append(path, g.assets[s].Name)
						}
						break
					}
				}
				return append(path, g.assets[j].Name)
			case unvisited:
				if cycle := visit(j); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = done
		return nil
	}

	for i := range g.assets {
		if included[i] && state[i] == unvisited {
			if cycle := visit(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Downstream returns the names of assets in order that declare name as an
// upstream.
func Downstream(order []*Asset, name string) []string {
	var out []string
	for _, a := range order {
		for _, up := range a.Upstreams {
			if up == name {
				out = append(out, a.Name)
				break
			}
		}
	}
	return out
}
