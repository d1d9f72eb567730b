// Package dag defines the four-layer project model shared by every other
// package: layer tags, nodes, edges, and the per-layer [Graph].
//
// # Layers
//
// A project is described at four levels of abstraction, each an independent
// directed graph:
//
//   - [LayerFunction]: business goals and functional requirements
//   - [LayerLogic]: technical architecture
//   - [LayerCode]: implementation units
//   - [LayerOrder]: execution order
//
// The set is closed. [ParseLayer] rejects anything else with [ErrInvalidLayer].
//
// # Invariants
//
// Within a layer node IDs are unique and every edge references nodes of the
// same layer. [Graph.Normalize] repairs structured input to satisfy both:
// dangling edge endpoints are synthesized as nodes whose label is their ID,
// never silently dropped.
//
//	g := dag.Graph{Edges: []dag.Edge{{Source: "A", Target: "B"}}}.Normalize()
//	// g.Nodes == [{A A} {B B}], g.Edges == [{A-B A B}]
//
// # Concurrency
//
// Graph values are plain data. The layer store in package store owns the only
// mutable copy and hands out clones.
package dag
