// Package render holds visual outputs for layer snapshots.
//
// Rendering stays outside the layer store: renderers consume
// [store.Snapshot] values and never feed anything back. The [nodelink]
// subpackage draws a layer as a Graphviz node-link diagram.
//
// [store.Snapshot]: github.com/matzehuels/dagplanner/pkg/store#Snapshot
// [nodelink]: github.com/matzehuels/dagplanner/pkg/render/nodelink
package render
