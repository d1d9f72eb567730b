// Package stats derives read-only summaries from the layer store.
//
// [Compute] is a pure function of the store's current state and must be
// called again after every mutation; nothing here is cached.
package stats

import "github.com/matzehuels/dagplanner/pkg/dag"

// Source is the read-only view of a layer store needed for projections.
type Source interface {
	NodeCount(layer dag.Layer) int
	EdgeCount(layer dag.Layer) int
}

// Stats holds node counts per layer. All four keys are always present.
type Stats struct {
	Function int `json:"function"`
	Logic    int `json:"logic"`
	Code     int `json:"code"`
	Order    int `json:"order"`
}

// Compute returns the node count of every layer, 0 for empty ones.
func Compute(src Source) Stats {
	var s Stats
	for _, l := range dag.Layers() {
		s.set(l, src.NodeCount(l))
	}
	return s
}

// Get returns the count for layer l, 0 for unknown layers.
func (s Stats) Get(l dag.Layer) int {
	switch l {
	case dag.LayerFunction:
		return s.Function
	case dag.LayerLogic:
		return s.Logic
	case dag.LayerCode:
		return s.Code
	case dag.LayerOrder:
		return s.Order
	}
	return 0
}

// Total returns the sum over all layers.
func (s Stats) Total() int { return s.Function + s.Logic + s.Code + s.Order }

func (s *Stats) set(l dag.Layer, n int) {
	switch l {
	case dag.LayerFunction:
		s.Function = n
	case dag.LayerLogic:
		s.Logic = n
	case dag.LayerCode:
		s.Code = n
	case dag.LayerOrder:
		s.Order = n
	}
}

// LayerSummary is the node and edge count of one layer.
type LayerSummary struct {
	Layer     dag.Layer `json:"layer"`
	NodeCount int       `json:"nodeCount"`
	EdgeCount int       `json:"edgeCount"`
}

// Summary extends Stats with edge counts and totals.
type Summary struct {
	Layers     []LayerSummary `json:"layers"`
	TotalNodes int            `json:"totalNodes"`
	TotalEdges int            `json:"totalEdges"`
	Populated  int            `json:"populatedLayers"`
}

// Summarize returns per-layer node and edge counts in canonical layer order.
func Summarize(src Source) Summary {
	var sum Summary
	for _, l := range dag.Layers() {
		ls := LayerSummary{Layer: l, NodeCount: src.NodeCount(l), EdgeCount: src.EdgeCount(l)}
		sum.Layers = append(sum.Layers, ls)
		sum.TotalNodes += ls.NodeCount
		sum.TotalEdges += ls.EdgeCount
		if ls.NodeCount > 0 {
			sum.Populated++
		}
	}
	return sum
}
