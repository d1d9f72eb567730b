package store

import (
	"time"

	"github.com/matzehuels/dagplanner/pkg/dag"
)

// Input is the content handed to [Store.LoadLayer]. The caller decides which
// variant it holds; the store never sniffs text for JSON or the reverse.
// The only implementations are [MermaidInput] and [StructuredInput].
type Input interface {
	input()
}

// MermaidInput is raw Mermaid flowchart text. It is parsed with the mermaid
// package and the text is kept as the layer's raw source.
type MermaidInput struct {
	Text       string
	SourceName string
	Timestamp  time.Time
}

// StructuredInput is an already structured {nodes, edges} graph. It is
// normalized before it is stored, so dangling edges get their endpoints
// synthesized. RawMermaid optionally records the text the graph was parsed
// from.
type StructuredInput struct {
	Graph      dag.Graph
	SourceName string
	Timestamp  time.Time
	RawMermaid string
}

func (MermaidInput) input()    {}
func (StructuredInput) input() {}

// Mermaid is shorthand for MermaidInput{Text: text}.
func Mermaid(text string) MermaidInput { return MermaidInput{Text: text} }
