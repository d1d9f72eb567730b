package mermaid

import (
	"slices"
	"testing"

	"github.com/matzehuels/dagplanner/pkg/dag"
)

func labels(g dag.Graph) map[string]string {
	out := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		out[n.ID] = n.Label
	}
	return out
}

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantLabels map[string]string
		wantEdges  [][2]string
	}{
		{
			name:       "Empty",
			input:      "",
			wantLabels: map[string]string{},
			wantEdges:  [][2]string{},
		},
		{
			name:       "LabeledEdge",
			input:      "A[x] --> B[y]",
			wantLabels: map[string]string{"A": "x", "B": "y"},
			wantEdges:  [][2]string{{"A", "B"}},
		},
		{
			name:       "BareEdgeSynthesizesEndpoints",
			input:      "M --> N",
			wantLabels: map[string]string{"M": "M", "N": "N"},
			wantEdges:  [][2]string{{"M", "N"}},
		},
		{
			name: "DeclarationsAndComments",
			input: `graph TD
    %% a comment
    A[Start] --> B[Middle]

    C[Loose]
    B --> C
    flowchart LR`,
			wantLabels: map[string]string{"A": "Start", "B": "Middle", "C": "Loose"},
			wantEdges:  [][2]string{{"A", "B"}, {"B", "C"}},
		},
		{
			name: "StandaloneDoesNotOverwrite",
			input: `A[First] --> B
A[Second]`,
			wantLabels: map[string]string{"A": "First", "B": "B"},
			wantEdges:  [][2]string{{"A", "B"}},
		},
		{
			name: "LaterBracketLabelReplacesIdentifierLabel",
			input: `M --> N
N[Named] --> O`,
			wantLabels: map[string]string{"M": "M", "N": "Named", "O": "O"},
			wantEdges:  [][2]string{{"M", "N"}, {"N", "O"}},
		},
		{
			name: "MalformedLinesSkipped",
			input: `this is not mermaid
A[ok] --> B
--> C
subgraph group
end
style A fill:#f9f`,
			wantLabels: map[string]string{"A": "ok", "B": "B"},
			wantEdges:  [][2]string{{"A", "B"}},
		},
		{
			name:       "ShapesQuotesAndEdgeLabels",
			input:      `A("round") -->|calls| B{decide}` + "\n" + `C["has [brackets]"] --> D((circle));`,
			wantLabels: map[string]string{"A": "round", "B": "decide", "C": "has [brackets]", "D": "circle"},
			wantEdges:  [][2]string{{"A", "B"}, {"C", "D"}},
		},
		{
			name:       "Chain",
			input:      "A --> B --> C",
			wantLabels: map[string]string{"A": "A", "B": "B", "C": "C"},
			wantEdges:  [][2]string{{"A", "B"}, {"B", "C"}},
		},
		{
			name:       "DuplicateEdge",
			input:      "A --> B\nA --> B",
			wantLabels: map[string]string{"A": "A", "B": "B"},
			wantEdges:  [][2]string{{"A", "B"}},
		},
		{
			name:       "HyphenatedIDs",
			input:      "user-api --> auth_db",
			wantLabels: map[string]string{"user-api": "user-api", "auth_db": "auth_db"},
			wantEdges:  [][2]string{{"user-api", "auth_db"}},
		},
		{
			name:       "ArrowInsideQuotedLabel",
			input:      `A["a --> b"] --> C`,
			wantLabels: map[string]string{"A": "a --> b", "C": "C"},
			wantEdges:  [][2]string{{"A", "C"}},
		},
		{
			name:       "ArrowInsideBracketLabel",
			input:      "A[parse --> check] --> B(emit -> done)",
			wantLabels: map[string]string{"A": "parse --> check", "B": "emit -> done"},
			wantEdges:  [][2]string{{"A", "B"}},
		},
		{
			name:       "LongArrowWithBracketedEdgeLabel",
			input:      "A --->|yes [sure]| B",
			wantLabels: map[string]string{"A": "A", "B": "B"},
			wantEdges:  [][2]string{{"A", "B"}},
		},
		{
			name:       "UnicodeIdentifiers",
			input:      "功能 --> 逻辑[检查输入]",
			wantLabels: map[string]string{"功能": "功能", "逻辑": "检查输入"},
			wantEdges:  [][2]string{{"功能", "逻辑"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Parse(tt.input)
			got := labels(g)
			if len(got) != len(tt.wantLabels) {
				t.Fatalf("nodes = %v, want %v", got, tt.wantLabels)
			}
			for id, want := range tt.wantLabels {
				if got[id] != want {
					t.Errorf("label[%s] = %q, want %q", id, got[id], want)
				}
			}
			if pairs := g.EdgePairs(); !slices.Equal(pairs, tt.wantEdges) {
				t.Errorf("edges = %v, want %v", pairs, tt.wantEdges)
			}
		})
	}
}

func TestParseEdgeIDs(t *testing.T) {
	g := Parse("A[x] --> B[y]")
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Fatalf("got %d nodes, %d edges; want 2, 1", len(g.Nodes), len(g.Edges))
	}
	if g.Edges[0].ID != "A-B" {
		t.Errorf("edge id = %q, want A-B", g.Edges[0].ID)
	}
}

func TestParseIdempotent(t *testing.T) {
	text := "graph TD\nA[a] --> B[b]\nB --> C\nD[d]\n"
	first, second := Parse(text), Parse(text)
	if !slices.Equal(first.Nodes, second.Nodes) {
		t.Errorf("nodes differ:\n%v\n%v", first.Nodes, second.Nodes)
	}
	if !slices.Equal(first.Edges, second.Edges) {
		t.Errorf("edges differ:\n%v\n%v", first.Edges, second.Edges)
	}
}

func TestParseSatisfiesInvariants(t *testing.T) {
	g := Parse("A --> B\nC[c] --> A\nX[x]")
	normalized := g.Normalize()
	if !slices.Equal(g.NodeIDs(), normalized.NodeIDs()) {
		t.Errorf("parser output needs repair: %v vs %v", g.NodeIDs(), normalized.NodeIDs())
	}
}
