package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/spectrena/spectrena/internal/types"
)

// buildTriangle returns the scenario graph: B depends on A, C depends
// on both A and B. A is complete, B and C are not started.
func buildTriangle(t *testing.T) *Graph {
	t.Helper()
	g := New()
	for _, edge := range [][2]string{
		{"core-002-b", "core-001-a"},
		{"core-003-c", "core-001-a"},
		{"core-003-c", "core-002-b"},
	} {
		if err := g.AddEdge(edge[0], edge[1]); err != nil {
			t.Fatalf("AddEdge(%s, %s): %v", edge[0], edge[1], err)
		}
	}
	g.SetStatus("core-001-a", types.StatusComplete)
	return g
}

func TestReadyAndBlocked(t *testing.T) {
	g := buildTriangle(t)

	ready := g.Ready()
	if !reflect.DeepEqual(ready, []string{"core-002-b"}) {
		t.Errorf("expected ready = [core-002-b], got %v", ready)
	}

	blocked := g.Blocked()
	if len(blocked) != 1 {
		t.Fatalf("expected exactly one blocked node, got %v", blocked)
	}
	unmet, ok := blocked["core-003-c"]
	if !ok {
		t.Fatalf("expected core-003-c to be blocked, got %v", blocked)
	}
	if !reflect.DeepEqual(unmet, []string{"core-002-b"}) {
		t.Errorf("expected unmet = [core-002-b], got %v", unmet)
	}
}

func TestReadyComplementAmongNonComplete(t *testing.T) {
	g := buildTriangle(t)

	ready := map[string]bool{}
	for _, id := range g.Ready() {
		ready[id] = true
	}
	blocked := g.Blocked()

	for _, id := range g.Nodes() {
		if g.Status(id) == types.StatusComplete {
			continue
		}
		_, isBlocked := blocked[id]
		if ready[id] == isBlocked {
			t.Errorf("node %s must be exactly one of ready/blocked", id)
		}
	}
}

func TestImpact(t *testing.T) {
	g := buildTriangle(t)

	impact := g.ImpactOf("core-001-a")
	want := []string{"core-002-b", "core-003-c"}
	if !reflect.DeepEqual(impact, want) {
		t.Errorf("expected impact(a) = %v, got %v", want, impact)
	}

	if impact := g.ImpactOf("core-003-c"); len(impact) != 0 {
		t.Errorf("expected impact(c) empty, got %v", impact)
	}
}

func TestImpactDiamondVisitsOnce(t *testing.T) {
	// d -> b -> a and d -> c -> a: impact(a) must list d once.
	g := New()
	for _, edge := range [][2]string{
		{"x-002-b", "x-001-a"},
		{"x-003-c", "x-001-a"},
		{"x-004-d", "x-002-b"},
		{"x-004-d", "x-003-c"},
	} {
		if err := g.AddEdge(edge[0], edge[1]); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	impact := g.ImpactOf("x-001-a")
	want := []string{"x-002-b", "x-003-c", "x-004-d"}
	if !reflect.DeepEqual(impact, want) {
		t.Errorf("expected %v, got %v", want, impact)
	}
}

func TestChainOf(t *testing.T) {
	g := buildTriangle(t)
	chain := g.ChainOf("core-003-c")
	want := []string{"core-001-a", "core-002-b"}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("expected chain(c) = %v, got %v", want, chain)
	}
}

func TestCycleRejected(t *testing.T) {
	g := buildTriangle(t)
	before := g.Edges()

	// A depends on C while C (transitively) depends on A.
	err := g.AddEdge("core-001-a", "core-003-c")
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycleErr.Path) < 3 {
		t.Errorf("expected full cycle path, got %v", cycleErr.Path)
	}
	if cycleErr.Path[0] != cycleErr.Path[len(cycleErr.Path)-1] {
		t.Errorf("cycle path must close on itself: %v", cycleErr.Path)
	}

	if !reflect.DeepEqual(g.Edges(), before) {
		t.Error("rejected edge must leave the graph unchanged")
	}
}

func TestSelfLoopRejected(t *testing.T) {
	g := New()
	err := g.AddEdge("core-001-a", "core-001-a")
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError for self-loop, got %v", err)
	}
	if len(g.Edges()) != 0 {
		t.Error("self-loop must not be recorded")
	}
}

func TestDuplicateEdgeIsNoop(t *testing.T) {
	g := New()
	if err := g.AddEdge("a-001-x", "a-002-y"); err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge("a-001-x", "a-002-y"); err != nil {
		t.Fatalf("duplicate edge should be a no-op, got %v", err)
	}
	if len(g.Edges()) != 1 {
		t.Errorf("expected 1 edge, got %d", len(g.Edges()))
	}
}

func TestRemoveEdge(t *testing.T) {
	g := buildTriangle(t)
	if !g.RemoveEdge("core-003-c", "core-002-b") {
		t.Fatal("expected edge to be removed")
	}
	if g.RemoveEdge("core-003-c", "core-002-b") {
		t.Error("removing a missing edge should report false")
	}
	// With B out of the way, C only waits on A, which is complete.
	ready := g.Ready()
	if !reflect.DeepEqual(ready, []string{"core-002-b", "core-003-c"}) {
		t.Errorf("expected both b and c ready, got %v", ready)
	}
}

func TestStubNodesBlockDependents(t *testing.T) {
	g := New()
	// The dependency has never been registered: it is stubbed NotStarted
	// and blocks its dependent until completed.
	if err := g.AddEdge("app-001-ui", "core-009-missing"); err != nil {
		t.Fatal(err)
	}
	if !g.HasNode("core-009-missing") {
		t.Fatal("expected stub node to exist")
	}
	if len(g.Ready()) != 1 || g.Ready()[0] != "core-009-missing" {
		t.Errorf("only the stub itself should be ready, got %v", g.Ready())
	}
	blocked := g.Blocked()
	if _, ok := blocked["app-001-ui"]; !ok {
		t.Errorf("expected dependent to be blocked, got %v", blocked)
	}
}

func TestZeroDependencyNodeAlwaysReady(t *testing.T) {
	g := New()
	g.AddNode("solo-001-node")
	if !reflect.DeepEqual(g.Ready(), []string{"solo-001-node"}) {
		t.Errorf("isolated node must be ready, got %v", g.Ready())
	}
}
