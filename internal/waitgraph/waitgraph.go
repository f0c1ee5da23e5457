// Package waitgraph tracks which components are blocked awaiting which others
// and refuses waits that would close a cycle.
package waitgraph

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// CycleError describes the wait cycle an Add call would have closed.
type CycleError struct {
	// Path lists the components from the new waiter back to itself.
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("wait cycle: %s", strings.Join(e.Path, " -> "))
}

type edge struct {
	from, to string
}

// Graph is a multigraph of pending waits. The zero value is not usable; call New.
type Graph struct {
	mu    sync.Mutex
	edges map[edge]int
	out   map[string]map[string]struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		edges: make(map[edge]int),
		out:   make(map[string]map[string]struct{}),
	}
}

// Add records that waiter is blocked on target. If target already waits,
// directly or transitively, on waiter, nothing is recorded and a *CycleError
// is returned. The returned release removes the wait and is safe to call twice.
func (g *Graph) Add(waiter, target string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if path := g.pathLocked(target, waiter); path != nil {
		return func() {}, &CycleError{Path: append([]string{waiter}, path...)}
	}

	e := edge{from: waiter, to: target}
	g.edges[e]++
	if g.out[waiter] == nil {
		g.out[waiter] = make(map[string]struct{})
	}
	g.out[waiter][target] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() { g.remove(e) })
	}, nil
}

func (g *Graph) remove(e edge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[e]--
	if g.edges[e] > 0 {
		return
	}
	delete(g.edges, e)
	delete(g.out[e.from], e.to)
	if len(g.out[e.from]) == 0 {
		delete(g.out, e.from)
	}
}

// pathLocked returns a path from -> ... -> to, or nil if none exists.
func (g *Graph) pathLocked(from, to string) []string {
	if from == to {
		return []string{from}
	}

	visited := map[string]bool{from: true}
	var walk func(node string, path []string) []string
	walk = func(node string, path []string) []string {
		targets := make([]string, 0, len(g.out[node]))
		for next := range g.out[node] {
			targets = append(targets, next)
		}
		slices.Sort(targets)

		for _, next := range targets {
			if next == to {
				return append(path, next)
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			if found := walk(next, append(path, next)); found != nil {
				return found
			}
		}
		return nil
	}

	return walk(from, []string{from})
}

// Waiting returns the targets waiter is currently blocked on, sorted.
func (g *Graph) Waiting(waiter string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	targets := make([]string, 0, len(g.out[waiter]))
	for t := range g.out[waiter] {
		targets = append(targets, t)
	}
	slices.Sort(targets)
	return targets
}
