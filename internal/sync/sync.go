// Package sync reconciles the human-edited dependency diagram file
// with the lineage store. The file is the editing surface; the store
// is the authority. Reconciliation moves edges in both directions but
// never takes spec status from the file.
package sync

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spectrena/spectrena/internal/graph"
	"github.com/spectrena/spectrena/internal/mermaid"
	"github.com/spectrena/spectrena/internal/storage"
	"github.com/spectrena/spectrena/internal/types"
)

// Engine reconciles one diagram file with one store.
type Engine struct {
	store    storage.Storage
	depsPath string
}

// New creates an engine for the diagram at depsPath.
func New(store storage.Storage, depsPath string) *Engine {
	return &Engine{store: store, depsPath: depsPath}
}

// Options modifies FileToStore behavior.
type Options struct {
	// Prune deletes store edges absent from the file instead of only
	// reporting them.
	Prune bool
	// Actor is recorded on audit events for edge changes.
	Actor string
}

// Report summarizes one reconciliation run. A run on stable input
// yields a report that IsClean.
type Report struct {
	// EdgesAdded were present in the file but not the store.
	EdgesAdded []types.Edge
	// EdgesRemoved were store-only and deleted because Prune was set.
	EdgesRemoved []types.Edge
	// StoreOnly were store-only and kept because Prune was not set.
	StoreOnly []types.Edge
	// StubsRegistered are identifiers that appeared in the file without
	// a registered spec and were auto-created as not_started.
	StubsRegistered []string
	// Warnings are skipped lines from the parser.
	Warnings []mermaid.Warning
	// CycleRejections are file edges refused because they would close a
	// cycle against the already-accepted edge set.
	CycleRejections []string
}

// IsClean reports whether the run changed nothing and found nothing to
// complain about.
func (r *Report) IsClean() bool {
	return len(r.EdgesAdded) == 0 && len(r.EdgesRemoved) == 0 &&
		len(r.StoreOnly) == 0 && len(r.StubsRegistered) == 0 &&
		len(r.Warnings) == 0 && len(r.CycleRejections) == 0
}

// FileToStore reads the diagram and folds it into the store: unknown
// identifiers become stub specs, file-only edges are inserted, and
// store-only edges are flagged (or deleted with Prune). File edges
// that would close a cycle are rejected and reported, never written.
func (e *Engine) FileToStore(ctx context.Context, opts Options) (*Report, error) {
	text, err := os.ReadFile(e.depsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", e.depsPath, err)
	}

	doc, warnings := mermaid.ParseDocument(string(text))
	report := &Report{Warnings: warnings}

	// Replay file edges into a fresh graph so cycle rejections are
	// deterministic and independent of store contents at this stage.
	fileGraph := graph.New()
	for _, n := range doc.Nodes {
		fileGraph.AddNode(n.ID)
	}
	var accepted []mermaid.Edge
	for _, fe := range doc.Edges {
		if err := fileGraph.AddEdge(fe.Dependent, fe.Dependency); err != nil {
			var cycle *graph.CycleError
			if errors.As(err, &cycle) {
				report.CycleRejections = append(report.CycleRejections,
					fmt.Sprintf("line %d: %s --> %s: %v", fe.Line, fe.Dependent, fe.Dependency, err))
				continue
			}
			return nil, err
		}
		accepted = append(accepted, fe)
	}

	// Auto-register stubs for identifiers the store has never seen.
	// Malformed identifiers surface as warnings, not errors; the file
	// is human-edited.
	known := make(map[string]bool)
	specs, err := e.store.ListSpecs(ctx)
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		known[spec.ID] = true
	}
	for _, id := range fileGraph.Nodes() {
		if known[id] {
			continue
		}
		if err := types.ValidateSpecID(id); err != nil {
			report.Warnings = append(report.Warnings, mermaid.Warning{Text: id})
			continue
		}
		if err := e.store.RegisterSpec(ctx, &types.Spec{ID: id}); err != nil {
			return nil, err
		}
		known[id] = true
		report.StubsRegistered = append(report.StubsRegistered, id)
	}

	storeEdges, err := e.store.ListEdges(ctx)
	if err != nil {
		return nil, err
	}
	inStore := make(map[[2]string]bool, len(storeEdges))
	for _, se := range storeEdges {
		inStore[[2]string{se.SpecID, se.DependsOnID}] = true
	}
	inFile := make(map[[2]string]bool, len(accepted))

	for _, fe := range accepted {
		key := [2]string{fe.Dependent, fe.Dependency}
		inFile[key] = true
		if inStore[key] {
			continue
		}
		if !known[fe.Dependent] || !known[fe.Dependency] {
			// Endpoint failed stub registration above.
			continue
		}
		if err := e.store.AddEdge(ctx, fe.Dependent, fe.Dependency, opts.Actor); err != nil {
			// The store may still reject the edge against edges the
			// file no longer carries.
			var cycle *graph.CycleError
			if errors.As(err, &cycle) {
				report.CycleRejections = append(report.CycleRejections,
					fmt.Sprintf("line %d: %s --> %s: %v", fe.Line, fe.Dependent, fe.Dependency, err))
				continue
			}
			return nil, err
		}
		report.EdgesAdded = append(report.EdgesAdded, types.Edge{SpecID: fe.Dependent, DependsOnID: fe.Dependency})
	}

	for _, se := range storeEdges {
		if inFile[[2]string{se.SpecID, se.DependsOnID}] {
			continue
		}
		if !opts.Prune {
			report.StoreOnly = append(report.StoreOnly, *se)
			continue
		}
		if err := e.store.RemoveEdge(ctx, se.SpecID, se.DependsOnID, opts.Actor); err != nil {
			return nil, err
		}
		report.EdgesRemoved = append(report.EdgesRemoved, *se)
	}

	return report, nil
}

// StoreToFile renders the store's specs and edges as diagram text and
// writes it to the deps file. Output is deterministic, so a stable
// store produces a byte-stable file.
func (e *Engine) StoreToFile(ctx context.Context) (string, error) {
	specs, err := e.store.ListSpecs(ctx)
	if err != nil {
		return "", err
	}
	edges, err := e.store.ListEdges(ctx)
	if err != nil {
		return "", err
	}

	g := graph.New()
	for _, spec := range specs {
		g.AddNode(spec.ID)
	}
	for _, edge := range edges {
		if err := g.AddEdge(edge.SpecID, edge.DependsOnID); err != nil {
			return "", fmt.Errorf("stored edge set is inconsistent: %w", err)
		}
	}

	text := mermaid.Render(g)
	if err := os.WriteFile(e.depsPath, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", e.depsPath, err)
	}
	return text, nil
}
