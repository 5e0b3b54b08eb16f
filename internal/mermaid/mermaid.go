// Package mermaid translates between the line-oriented dependency
// diagram format and the in-memory graph. The format is a small subset
// of mermaid flowchart syntax: an optional "graph TD" header, bare
// identifiers declaring isolated nodes, and "A --> B" declaring that A
// depends on B. The file is human-edited, so unknown syntax is never
// fatal: bad lines are skipped and reported as warnings.
package mermaid

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/spectrena/spectrena/internal/graph"
)

// Warning reports a skipped line. Collected, never thrown.
type Warning struct {
	Line int
	Text string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: unrecognized syntax: %q", w.Line, w.Text)
}

// Edge is one parsed dependency declaration with its source line.
type Edge struct {
	Dependent  string
	Dependency string
	Line       int
}

// Document is the parsed form of a diagram file, before any graph
// semantics (cycle rejection, stubbing) are applied.
type Document struct {
	Nodes []Node
	Edges []Edge
}

// Node is one parsed isolated-node declaration.
type Node struct {
	ID   string
	Line int
}

var (
	edgeLine   = regexp.MustCompile(`^(\S+)\s*-->\s*(\S+)$`)
	headerLine = regexp.MustCompile(`^graph\s+(TD|TB|LR|RL|BT)$`)
	nodeLine   = regexp.MustCompile(`^\S+$`)
)

// ParseDocument scans the diagram text line by line. Header lines
// ("graph TD"), code fences, and blanks are structural and skipped
// silently; anything else that is not a node or edge declaration
// yields a Warning.
func ParseDocument(text string) (*Document, []Warning) {
	doc := &Document{}
	var warnings []Warning

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		switch {
		case line == "":
			continue
		case headerLine.MatchString(line):
			continue
		case line == "```" || strings.HasPrefix(line, "```mermaid"):
			continue
		}

		if m := edgeLine.FindStringSubmatch(line); m != nil {
			doc.Edges = append(doc.Edges, Edge{Dependent: m[1], Dependency: m[2], Line: lineNo})
			continue
		}

		if nodeLine.MatchString(line) && !strings.Contains(line, "-->") {
			doc.Nodes = append(doc.Nodes, Node{ID: line, Line: lineNo})
			continue
		}

		warnings = append(warnings, Warning{Line: lineNo, Text: raw})
	}

	return doc, warnings
}

// Parse builds a graph from diagram text. Edges that would introduce a
// cycle are skipped and reported alongside syntax warnings; callers
// that need cycle rejections separated from syntax noise should use
// ParseDocument and replay the edges themselves.
func Parse(text string) (*graph.Graph, []Warning) {
	doc, warnings := ParseDocument(text)
	g := graph.New()
	for _, n := range doc.Nodes {
		g.AddNode(n.ID)
	}
	for _, e := range doc.Edges {
		if err := g.AddEdge(e.Dependent, e.Dependency); err != nil {
			warnings = append(warnings, Warning{
				Line: e.Line,
				Text: fmt.Sprintf("%s --> %s (%v)", e.Dependent, e.Dependency, err),
			})
		}
	}
	return g, warnings
}

// Render emits a graph in deterministic diagram form: header, isolated
// nodes sorted by identifier, then edges sorted by dependent and
// dependency. Stable output keeps the file diffable under version
// control. Round-trip law: Parse(Render(g)) has the same node and edge
// sets as g.
func Render(g *graph.Graph) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	inEdge := make(map[string]bool)
	edges := g.Edges()
	for _, e := range edges {
		inEdge[e[0]] = true
		inEdge[e[1]] = true
	}

	for _, id := range g.Nodes() {
		if !inEdge[id] {
			b.WriteString("    " + id + "\n")
		}
	}
	for _, e := range edges {
		b.WriteString("    " + e[0] + " --> " + e[1] + "\n")
	}
	return b.String()
}
