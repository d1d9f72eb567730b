// Package nodelink renders a layer as a node-link diagram.
//
// # Usage
//
// Convert a snapshot to DOT, then render to SVG:
//
//	dot := nodelink.ToDOT(snap, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// # DOT Format
//
// The generated DOT uses top-to-bottom layout (rankdir=TB) with rounded box
// nodes labelled with the node label. Edges that close a cycle are drawn
// dashed. With [Options.Detailed] each label also shows the node ID, and the
// graph title carries the layer name and source.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering; no Graphviz installation is needed.
package nodelink
