package store

import (
	"encoding/json"
	"strings"

	"github.com/matzehuels/dagplanner/pkg/dag"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/mermaid"
)

// Format selects the output of [Store.ExportAll].
type Format string

const (
	FormatJSON    Format = "json"
	FormatMermaid Format = "mermaid"
)

// ParseFormat returns the Format named by s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatMermaid:
		return f, nil
	}
	return "", errs.New(errs.ErrCodeInvalidFormat, "unknown export format %q (want json or mermaid)", s)
}

// LayerExport is one layer in the JSON export.
type LayerExport struct {
	Nodes    []dag.Node   `json:"nodes"`
	Edges    []dag.Edge   `json:"edges"`
	Metadata dag.Metadata `json:"metadata"`
}

// ExportAll serializes all four layers.
//
// FormatJSON yields an object keyed by layer with nodes, edges and metadata.
// FormatMermaid yields one composite Mermaid document with a "%% <layer>
// layer" comment before each layer's edges. The Mermaid form is lossy: node
// labels and edgeless nodes are not written, only the edge set of each layer
// survives a re-parse.
func (s *Store) ExportAll(format Format) ([]byte, error) {
	snaps := s.Snapshots()
	switch format {
	case FormatJSON:
		out := make(map[dag.Layer]LayerExport, len(snaps))
		for _, snap := range snaps {
			out[snap.Layer] = LayerExport{Nodes: snap.Graph.Nodes, Edges: snap.Graph.Edges, Metadata: snap.Metadata}
		}
		return json.MarshalIndent(out, "", "  ")
	case FormatMermaid:
		sections := make([]mermaid.Section, 0, len(snaps))
		for _, snap := range snaps {
			sections = append(sections, mermaid.Section{Layer: snap.Layer, Graph: snap.Graph})
		}
		return []byte(mermaid.FormatComposite(sections)), nil
	}
	return nil, errs.New(errs.ErrCodeInvalidFormat, "unknown export format %q (want json or mermaid)", string(format))
}

// ExportLayer serializes one layer. FormatJSON yields the layer's nodes,
// edges and metadata; FormatMermaid yields a standalone flowchart that keeps
// node labels and edgeless nodes.
func (s *Store) ExportLayer(layer dag.Layer, format Format) ([]byte, error) {
	snap, err := s.GetLayer(layer)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return json.MarshalIndent(LayerExport{Nodes: snap.Graph.Nodes, Edges: snap.Graph.Edges, Metadata: snap.Metadata}, "", "  ")
	case FormatMermaid:
		return []byte(mermaid.Format(snap.Graph)), nil
	}
	return nil, errs.New(errs.ErrCodeInvalidFormat, "unknown export format %q (want json or mermaid)", string(format))
}

// LoadComposite loads every layer section of a composite Mermaid document,
// as written by ExportAll with FormatMermaid. Layers without a section are
// left alone. It returns the layers that were loaded.
func (s *Store) LoadComposite(text, sourceName string) ([]dag.Layer, error) {
	parts := mermaid.SplitComposite(text)
	if len(parts) == 0 {
		return nil, errs.New(errs.ErrCodeUnsupportedInput, "no \"%%%% <layer> layer\" sections found")
	}
	var loaded []dag.Layer
	for _, l := range dag.Layers() {
		part, ok := parts[l]
		if !ok {
			continue
		}
		if err := s.LoadLayer(l, MermaidInput{Text: part, SourceName: sourceName}); err != nil {
			return loaded, err
		}
		loaded = append(loaded, l)
	}
	return loaded, nil
}

// Graphs returns the nodes and edges of every layer, keyed by layer.
// Metadata is dropped.
func (s *Store) Graphs() map[dag.Layer]dag.Graph {
	out := make(map[dag.Layer]dag.Graph, 4)
	for _, snap := range s.Snapshots() {
		out[snap.Layer] = snap.Graph
	}
	return out
}
