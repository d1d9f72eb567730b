package mermaid

import (
	"fmt"
	"strings"

	"github.com/matzehuels/dagplanner/pkg/dag"
)

// Header is the graph declaration written at the top of formatted output.
const Header = "graph TD"

const indent = "    "

// Section is one layer of a composite document.
type Section struct {
	Layer dag.Layer
	Graph dag.Graph
}

// Format renders a single layer as Mermaid text. Edge lines carry both
// endpoint labels; nodes without edges are written as standalone
// declarations after the edges, so Parse(Format(g)) restores g up to
// positions.
func Format(g dag.Graph) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')

	labels := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		labels[n.ID] = n.DisplayLabel()
	}
	ref := func(id string) string {
		label, ok := labels[id]
		if !ok || label == id {
			return id
		}
		return id + "[" + quoteLabel(label) + "]"
	}

	linked := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "%s%s --> %s\n", indent, ref(e.Source), ref(e.Target))
		linked[e.Source] = true
		linked[e.Target] = true
	}
	for _, n := range g.Nodes {
		if linked[n.ID] {
			continue
		}
		fmt.Fprintf(&b, "%s%s[%s]\n", indent, n.ID, quoteLabel(n.DisplayLabel()))
	}
	return b.String()
}

// FormatComposite renders several layers as one Mermaid document. Each layer
// is introduced by a "%% <layer> layer" comment followed by its edges as
// bare "SRC --> TGT" lines.
//
// The composite form is lossy: node labels and edgeless nodes are not
// written. Only the edge set of each layer survives a round trip through
// [Parse] or [SplitComposite].
func FormatComposite(sections []Section) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')
	for _, s := range sections {
		fmt.Fprintf(&b, "%s%%%% %s layer\n", indent, s.Layer)
		for _, e := range s.Graph.Edges {
			fmt.Fprintf(&b, "%s%s --> %s\n", indent, e.Source, e.Target)
		}
	}
	return b.String()
}

// SplitComposite splits a document produced by [FormatComposite] back into
// per-layer Mermaid text. Lines before the first layer comment, and sections
// for unknown layers, are discarded.
func SplitComposite(text string) map[dag.Layer]string {
	out := make(map[dag.Layer]string)
	var (
		current dag.Layer
		body    strings.Builder
	)
	flush := func() {
		if current != "" {
			out[current] = Header + "\n" + body.String()
		}
		body.Reset()
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if rest, ok := strings.CutPrefix(line, "%%"); ok {
			name, isLayer := strings.CutSuffix(strings.TrimSpace(rest), " layer")
			if isLayer {
				flush()
				current = ""
				if l, err := dag.ParseLayer(name); err == nil {
					current = l
				}
				continue
			}
		}
		if current != "" && line != "" && !ignored(line) {
			body.WriteString(indent + line + "\n")
		}
	}
	flush()
	return out
}

func quoteLabel(s string) string {
	if strings.ContainsAny(s, "[](){}|-\"") {
		return `"` + strings.ReplaceAll(s, `"`, "'") + `"`
	}
	return s
}
