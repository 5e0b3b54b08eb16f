// Package readiness answers scheduling queries over the dependency
// graph: which specs are unblocked, what blocks the rest, and what a
// change would ripple into. Every query rebuilds its graph snapshot
// from the store, so answers always reflect the persisted authority.
package readiness

import (
	"context"
	"fmt"

	"github.com/spectrena/spectrena/internal/graph"
	"github.com/spectrena/spectrena/internal/storage"
)

// Engine computes readiness and impact from the lineage store.
type Engine struct {
	store storage.Storage
}

// New creates an engine over the given store.
func New(store storage.Storage) *Engine {
	return &Engine{store: store}
}

// Snapshot loads all specs and edges into a fresh graph.
func (e *Engine) Snapshot(ctx context.Context) (*graph.Graph, error) {
	specs, err := e.store.ListSpecs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}
	edges, err := e.store.ListEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}

	g := graph.New()
	for _, spec := range specs {
		g.AddNode(spec.ID)
		g.SetStatus(spec.ID, spec.Status)
	}
	for _, edge := range edges {
		// Stored edges are acyclic by construction.
		if err := g.AddEdge(edge.SpecID, edge.DependsOnID); err != nil {
			return nil, fmt.Errorf("stored edge set is inconsistent: %w", err)
		}
	}
	return g, nil
}

// Ready returns the specs that are not complete and have every
// dependency complete, sorted by identifier.
func (e *Engine) Ready(ctx context.Context) ([]string, error) {
	g, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return g.Ready(), nil
}

// Blocked maps each blocked spec to its unmet dependencies.
func (e *Engine) Blocked(ctx context.Context) (map[string][]string, error) {
	g, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return g.Blocked(), nil
}

// UnmetDependencies returns the incomplete dependencies of one spec.
// A spec with no unmet dependencies is safe to start.
func (e *Engine) UnmetDependencies(ctx context.Context, specID string) ([]string, error) {
	if _, err := e.store.GetSpec(ctx, specID); err != nil {
		return nil, err
	}
	g, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return g.Blocked()[specID], nil
}

// Impact returns every spec that transitively depends on specID, i.e.
// everything a change to it could ripple into.
func (e *Engine) Impact(ctx context.Context, specID string) ([]string, error) {
	if _, err := e.store.GetSpec(ctx, specID); err != nil {
		return nil, err
	}
	g, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return g.ImpactOf(specID), nil
}

// Chain returns every spec that specID transitively depends on: the
// full prerequisite closure.
func (e *Engine) Chain(ctx context.Context, specID string) ([]string, error) {
	if _, err := e.store.GetSpec(ctx, specID); err != nil {
		return nil, err
	}
	g, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return g.ChainOf(specID), nil
}
