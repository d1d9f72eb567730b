package dag

import (
	"errors"
	"slices"
	"time"
)

// ErrGraphHasCycle is returned by [Graph.Validate] when a directed cycle is
// detected. Cycles are detected using depth-first search with white/gray/black
// coloring.
var ErrGraphHasCycle = errors.New("graph contains a cycle")

// Position is a placeholder coordinate. Layout is owned by renderers; the
// model never relies on it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a vertex of one layer. ID is unique within the layer.
type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Position Position `json:"position"`
}

// DisplayLabel returns the label if set, otherwise the ID.
func (n Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Edge is a directed connection between two nodes of the same layer.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// EdgeID returns the canonical edge identifier "<source>-<target>".
func EdgeID(source, target string) string { return source + "-" + target }

// Metadata describes where a layer's content came from.
type Metadata struct {
	SourceName      string    `json:"sourceName,omitempty"`
	OriginTimestamp time.Time `json:"originTimestamp,omitzero"`
	RawMermaid      string    `json:"rawMermaidSource,omitempty"`
}

// Graph is the structured {nodes, edges} shape of a single layer.
//
// A Graph straight from JSON may violate the layer invariants; call
// [Graph.Normalize] before storing it.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Normalize returns a copy of g that satisfies the layer invariants:
//
//   - node IDs are unique; a repeated ID overwrites label and position but
//     keeps the slot of its first occurrence
//   - nodes with empty IDs and edges with empty endpoints are dropped
//   - edge IDs are recomputed as "<source>-<target>" and deduplicated
//   - edges referencing unknown nodes get the missing endpoint synthesized
//     with label = ID
//
// Normalize never drops an edge because of a dangling endpoint.
func (g Graph) Normalize() Graph {
	out := Graph{
		Nodes: make([]Node, 0, len(g.Nodes)),
		Edges: make([]Edge, 0, len(g.Edges)),
	}
	index := make(map[string]int, len(g.Nodes))

	for _, n := range g.Nodes {
		if n.ID == "" {
			continue
		}
		if n.Label == "" {
			n.Label = n.ID
		}
		if i, ok := index[n.ID]; ok {
			out.Nodes[i] = n
			continue
		}
		index[n.ID] = len(out.Nodes)
		out.Nodes = append(out.Nodes, n)
	}

	ensure := func(id string) {
		if _, ok := index[id]; ok {
			return
		}
		index[id] = len(out.Nodes)
		out.Nodes = append(out.Nodes, Node{ID: id, Label: id})
	}

	seen := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		if e.Source == "" || e.Target == "" {
			continue
		}
		id := EdgeID(e.Source, e.Target)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ensure(e.Source)
		ensure(e.Target)
		out.Edges = append(out.Edges, Edge{ID: id, Source: e.Source, Target: e.Target})
	}
	return out
}

// Clone returns a deep copy of g.
func (g Graph) Clone() Graph {
	return Graph{Nodes: slices.Clone(g.Nodes), Edges: slices.Clone(g.Edges)}
}

// Empty reports whether g has neither nodes nor edges.
func (g Graph) Empty() bool { return len(g.Nodes) == 0 && len(g.Edges) == 0 }

// NodeIDs returns the node IDs sorted lexically.
func (g Graph) NodeIDs() []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	slices.Sort(ids)
	return ids
}

// EdgePairs returns the (source, target) pairs sorted lexically.
func (g Graph) EdgePairs() [][2]string {
	pairs := make([][2]string, len(g.Edges))
	for i, e := range g.Edges {
		pairs[i] = [2]string{e.Source, e.Target}
	}
	slices.SortFunc(pairs, func(a, b [2]string) int {
		if a[0] != b[0] {
			if a[0] < b[0] {
				return -1
			}
			return 1
		}
		switch {
		case a[1] < b[1]:
			return -1
		case a[1] > b[1]:
			return 1
		}
		return 0
	})
	return pairs
}

// Sources returns the IDs of nodes without incoming edges, in node order.
func (g Graph) Sources() []string {
	incoming := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		incoming[e.Target] = true
	}
	var ids []string
	for _, n := range g.Nodes {
		if !incoming[n.ID] {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// BackEdges returns the edges that close a directed cycle when the graph is
// walked depth-first from its sources. An acyclic graph has none.
func (g Graph) BackEdges() []Edge {
	const (
		white = iota
		gray
		black
	)

	outgoing := make(map[string][]Edge, len(g.Nodes))
	for _, e := range g.Edges {
		outgoing[e.Source] = append(outgoing[e.Source], e)
	}

	color := make(map[string]int, len(g.Nodes))
	var back []Edge

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, e := range outgoing[id] {
			switch color[e.Target] {
			case white:
				dfs(e.Target)
			case gray:
				back = append(back, e)
			}
		}
		color[id] = black
	}

	for _, id := range g.Sources() {
		if color[id] == white {
			dfs(id)
		}
	}
	for _, n := range g.Nodes {
		if color[n.ID] == white {
			dfs(n.ID)
		}
	}
	return back
}

// Validate returns ErrGraphHasCycle if the graph is not acyclic.
// Loading never rejects cyclic content; Validate is advisory.
func (g Graph) Validate() error {
	if len(g.BackEdges()) > 0 {
		return ErrGraphHasCycle
	}
	return nil
}
