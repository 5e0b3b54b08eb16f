// Package graph holds the in-memory dependency graph over spec
// identifiers. It is a transient, rebuildable projection: the lineage
// store owns persisted identity, and callers rebuild a Graph from the
// store or the diagram file whenever they need to answer queries.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spectrena/spectrena/internal/types"
)

// CycleError reports an edge rejected because it would close a
// dependency cycle. Path is the full offending walk, first and last
// element equal, so the operator can fix the input without re-deriving
// the problem.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// Graph is a directed acyclic graph of spec identifiers. Edges point
// from dependent to dependency: an edge (A, B) means A depends on B.
// Not safe for concurrent mutation.
type Graph struct {
	status map[string]types.Status
	deps   map[string]map[string]struct{} // dependent -> dependencies
	rdeps  map[string]map[string]struct{} // dependency -> dependents
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		status: make(map[string]types.Status),
		deps:   make(map[string]map[string]struct{}),
		rdeps:  make(map[string]map[string]struct{}),
	}
}

// AddNode registers an isolated node. Adding an existing node is a
// no-op and preserves its status.
func (g *Graph) AddNode(id string) {
	if _, ok := g.status[id]; !ok {
		g.status[id] = types.StatusNotStarted
	}
}

// HasNode reports whether id is known to the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.status[id]
	return ok
}

// SetStatus records the lifecycle status for a node, creating it if
// needed. Status is store-authoritative; the graph only mirrors it for
// readiness computation.
func (g *Graph) SetStatus(id string, status types.Status) {
	g.AddNode(id)
	g.status[id] = status
}

// Status returns the recorded status for a node. Unknown nodes report
// NotStarted, matching the stub policy.
func (g *Graph) Status(id string) types.Status {
	if s, ok := g.status[id]; ok {
		return s
	}
	return types.StatusNotStarted
}

// AddEdge declares that dependent depends on dependency. Missing
// endpoints are created as NotStarted stub nodes. The edge is rejected
// with a *CycleError if it would close a cycle; self-loops are rejected
// outright. Re-adding an existing edge is a no-op.
func (g *Graph) AddEdge(dependent, dependency string) error {
	if dependent == dependency {
		return &CycleError{Path: []string{dependent, dependent}}
	}

	if _, ok := g.deps[dependent][dependency]; ok {
		return nil
	}

	// Reject before mutating: if dependent is already reachable from
	// dependency along depends-on edges, this edge closes a cycle.
	if path := g.findPath(dependency, dependent); path != nil {
		return &CycleError{Path: append([]string{dependent}, path...)}
	}

	g.AddNode(dependent)
	g.AddNode(dependency)
	if g.deps[dependent] == nil {
		g.deps[dependent] = make(map[string]struct{})
	}
	g.deps[dependent][dependency] = struct{}{}
	if g.rdeps[dependency] == nil {
		g.rdeps[dependency] = make(map[string]struct{})
	}
	g.rdeps[dependency][dependent] = struct{}{}
	return nil
}

// RemoveEdge deletes the (dependent, dependency) edge if present.
// Returns true if an edge was removed.
func (g *Graph) RemoveEdge(dependent, dependency string) bool {
	if _, ok := g.deps[dependent][dependency]; !ok {
		return false
	}
	delete(g.deps[dependent], dependency)
	if len(g.deps[dependent]) == 0 {
		delete(g.deps, dependent)
	}
	delete(g.rdeps[dependency], dependent)
	if len(g.rdeps[dependency]) == 0 {
		delete(g.rdeps, dependency)
	}
	return true
}

// findPath returns a path from -> ... -> to along depends-on edges, or
// nil if to is unreachable. Depth-first, each node visited once.
func (g *Graph) findPath(from, to string) []string {
	visited := make(map[string]bool)
	var walk func(node string, path []string) []string
	walk = func(node string, path []string) []string {
		path = append(path, node)
		if node == to {
			return path
		}
		visited[node] = true
		// Deterministic traversal order keeps reported cycle paths stable.
		next := make([]string, 0, len(g.deps[node]))
		for dep := range g.deps[node] {
			next = append(next, dep)
		}
		sort.Strings(next)
		for _, dep := range next {
			if visited[dep] {
				continue
			}
			if found := walk(dep, path); found != nil {
				return found
			}
		}
		return nil
	}
	if !g.HasNode(from) || !g.HasNode(to) {
		return nil
	}
	return walk(from, nil)
}

// Nodes returns all node identifiers, sorted.
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.status))
	for id := range g.status {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// Edges returns all edges as (dependent, dependency) pairs, sorted by
// dependent then dependency.
func (g *Graph) Edges() [][2]string {
	var edges [][2]string
	for dependent, set := range g.deps {
		for dependency := range set {
			edges = append(edges, [2]string{dependent, dependency})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}

// Dependencies returns the direct dependencies of id, sorted.
func (g *Graph) Dependencies(id string) []string {
	deps := make([]string, 0, len(g.deps[id]))
	for dep := range g.deps[id] {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// Dependents returns the direct dependents of id, sorted.
func (g *Graph) Dependents(id string) []string {
	deps := make([]string, 0, len(g.rdeps[id]))
	for dep := range g.rdeps[id] {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// Ready returns non-complete nodes whose every dependency is complete.
// A node with zero dependencies is always ready. Sorted.
func (g *Graph) Ready() []string {
	var ready []string
	for id, status := range g.status {
		if status == types.StatusComplete {
			continue
		}
		if len(g.unmet(id)) == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	return ready
}

// Blocked returns, for every non-complete node with at least one
// incomplete dependency, the sorted set of unmet dependencies.
func (g *Graph) Blocked() map[string][]string {
	blocked := make(map[string][]string)
	for id, status := range g.status {
		if status == types.StatusComplete {
			continue
		}
		if unmet := g.unmet(id); len(unmet) > 0 {
			blocked[id] = unmet
		}
	}
	return blocked
}

// unmet returns the sorted incomplete dependencies of id.
func (g *Graph) unmet(id string) []string {
	var unmet []string
	for dep := range g.deps[id] {
		if g.Status(dep) != types.StatusComplete {
			unmet = append(unmet, dep)
		}
	}
	sort.Strings(unmet)
	return unmet
}

// ImpactOf returns every node that transitively depends on id: the set
// needing rework if id slips. Breadth-first over reverse edges, each
// node visited at most once even under diamond dependencies. Sorted;
// excludes id itself. Unknown identifiers yield an empty set.
func (g *Graph) ImpactOf(id string) []string {
	return g.closure(id, g.rdeps)
}

// ChainOf returns the full upstream closure of id: everything it
// transitively depends on. Sorted; excludes id itself.
func (g *Graph) ChainOf(id string) []string {
	return g.closure(id, g.deps)
}

func (g *Graph) closure(id string, edges map[string]map[string]struct{}) []string {
	visited := map[string]bool{id: true}
	queue := []string{id}
	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for next := range edges[node] {
			if visited[next] {
				continue
			}
			visited[next] = true
			result = append(result, next)
			queue = append(queue, next)
		}
	}
	sort.Strings(result)
	return result
}
