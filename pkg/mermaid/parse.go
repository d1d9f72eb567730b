package mermaid

import (
	"regexp"
	"strings"

	"github.com/matzehuels/dagplanner/pkg/dag"
)

// Placeholder grid used for parsed node positions. Positions are stable for a
// given text so that re-parsing yields identical graphs.
const (
	gridColumns = 4
	gridDX      = 150
	gridDY      = 100
)

// nodeRe matches one node token: an identifier (letters and digits of any
// script) with an optional label in [..], (..), ((..)) or {..}. Quoted labels
// may contain bracket characters.
var nodeRe = regexp.MustCompile(`^([\p{L}\p{N}_][\p{L}\p{N}_.-]*)\s*` +
	`(?:\[\s*"([^"]*)"\s*\]|\[\s*([^\]]*?)\s*\]|\(\(\s*([^)]*?)\s*\)\)|\(\s*([^)]*?)\s*\)|\{\s*([^}]*?)\s*\})?` +
	`\s*;?$`)

// token is one parsed node reference.
type token struct {
	id       string
	label    string
	hasLabel bool
}

// Parse converts Mermaid flowchart text into a layer graph.
//
// Parse never fails: blank lines, graph/flowchart declarations and %% comments
// are ignored and any other line it cannot read is skipped. Each line is tried
// first as an edge "SRC[label]? --> TGT[label]?" (chains of arrows produce one
// edge per hop), then as a standalone "ID[Label]" declaration. Edge endpoints
// are created on first sight with label = bracket text, or the identifier when
// there is none; a later bracket label replaces such an identifier label.
// Standalone declarations only add nodes that are not yet known.
func Parse(text string) dag.Graph {
	p := newParser()
	for _, line := range strings.Split(text, "\n") {
		p.line(strings.TrimSpace(line))
	}
	return p.graph()
}

type parser struct {
	nodes []dag.Node
	index map[string]int
	edges []dag.Edge
	seen  map[string]struct{}
}

func newParser() *parser {
	return &parser{
		index: make(map[string]int),
		seen:  make(map[string]struct{}),
	}
}

func (p *parser) line(line string) {
	if ignored(line) {
		return
	}
	if p.edgeLine(line) {
		return
	}
	if tok, ok := parseToken(line); ok && tok.hasLabel {
		if _, known := p.index[tok.id]; !known {
			p.add(tok)
		}
	}
}

// edgeLine handles shape 1. It reports whether the line was an edge line.
func (p *parser) edgeLine(line string) bool {
	parts := splitArrows(line)
	if len(parts) < 2 {
		return false
	}
	toks := make([]token, len(parts))
	for i, part := range parts {
		tok, ok := parseToken(strings.TrimSpace(part))
		if !ok {
			return false
		}
		toks[i] = tok
	}
	for _, tok := range toks {
		p.upsert(tok)
	}
	for i := 1; i < len(toks); i++ {
		p.edge(toks[i-1].id, toks[i].id)
	}
	return true
}

func (p *parser) add(tok token) {
	label := tok.id
	if tok.hasLabel && tok.label != "" {
		label = tok.label
	}
	i := len(p.nodes)
	p.index[tok.id] = i
	p.nodes = append(p.nodes, dag.Node{
		ID:       tok.id,
		Label:    label,
		Position: dag.Position{X: float64(gridDX * (i % gridColumns)), Y: float64(gridDY * (i / gridColumns))},
	})
}

func (p *parser) upsert(tok token) {
	i, ok := p.index[tok.id]
	if !ok {
		p.add(tok)
		return
	}
	n := &p.nodes[i]
	if tok.hasLabel && tok.label != "" && n.Label == n.ID {
		n.Label = tok.label
	}
}

func (p *parser) edge(source, target string) {
	id := dag.EdgeID(source, target)
	if _, dup := p.seen[id]; dup {
		return
	}
	p.seen[id] = struct{}{}
	p.edges = append(p.edges, dag.Edge{ID: id, Source: source, Target: target})
}

func (p *parser) graph() dag.Graph {
	g := dag.Graph{Nodes: p.nodes, Edges: p.edges}
	if g.Nodes == nil {
		g.Nodes = []dag.Node{}
	}
	if g.Edges == nil {
		g.Edges = []dag.Edge{}
	}
	return g
}

// splitArrows splits line on "-->" arrows (two or more dashes), dropping an
// optional |edge label| after each arrow. Arrows inside [..], (..), {..} or
// "..." belong to a label and do not split.
func splitArrows(line string) []string {
	var (
		parts []string
		depth int
		quote bool
		start int
	)
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '"':
			quote = !quote
		case quote:
		case c == '[' || c == '(' || c == '{':
			depth++
		case c == ']' || c == ')' || c == '}':
			depth = max(depth-1, 0)
		case c == '-' && depth == 0:
			j := i
			for j < len(line) && line[j] == '-' {
				j++
			}
			if j-i < 2 || j >= len(line) || line[j] != '>' {
				i = j - 1
				continue
			}
			parts = append(parts, line[start:i])
			j++
			if k := skipSpace(line, j); k < len(line) && line[k] == '|' {
				if end := strings.IndexByte(line[k+1:], '|'); end >= 0 {
					j = k + end + 2
				}
			}
			start = j
			i = j - 1
		}
	}
	return append(parts, line[start:])
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

func ignored(line string) bool {
	if line == "" || strings.HasPrefix(line, "%%") {
		return true
	}
	word, _, _ := strings.Cut(line, " ")
	switch strings.ToLower(word) {
	case "graph", "flowchart":
		return true
	}
	return false
}

func parseToken(s string) (token, bool) {
	m := nodeRe.FindStringSubmatch(s)
	if m == nil {
		return token{}, false
	}
	tok := token{id: m[1]}
	for _, g := range m[2:] {
		if g != "" {
			tok.label = unquote(g)
			tok.hasLabel = true
			break
		}
	}
	if !tok.hasLabel && len(s) > len(m[1]) {
		// empty brackets such as "A[]" still count as a declaration
		rest := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s[len(m[1]):]), ";"))
		tok.hasLabel = rest != ""
	}
	return tok, true
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
