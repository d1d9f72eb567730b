// Package store holds the four layers of a session in memory.
//
// [Store] is the only mutable shared resource of a session. All writes go
// through [Store.LoadLayer], [Store.Commit], [Store.ClearLayer] and
// [Store.ClearAll]; readers get deep copies via [Store.GetLayer].
//
// Every commit replaces a layer wholesale. Change events are emitted after
// the commit is visible and outside the store lock, so handlers may read the
// store freely.
//
// # Generations
//
// Each layer carries a generation counter. [Store.Begin] reserves the next
// generation; [Store.Commit] lands only if no commit with a newer generation
// has landed for that layer in the meantime. A slow response that resolves
// after a newer one was committed is discarded instead of overwriting newer
// data:
//
//	tok, _ := s.Begin(dag.LayerLogic)
//	text := fetch(ctx) // may be slow
//	applied, err := s.Commit(tok, store.Mermaid(text))
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagplanner/pkg/dag"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/mermaid"
	"github.com/matzehuels/dagplanner/pkg/notify"
	"github.com/matzehuels/dagplanner/pkg/stats"
)

// Token identifies one reserved commit generation for a layer.
type Token struct {
	layer dag.Layer
	gen   uint64
}

// Layer returns the layer the token was issued for.
func (t Token) Layer() dag.Layer { return t.layer }

// Generation returns the reserved generation.
func (t Token) Generation() uint64 { return t.gen }

// Snapshot is a read-only deep copy of one layer.
type Snapshot struct {
	Layer      dag.Layer    `json:"layer"`
	Graph      dag.Graph    `json:"graph"`
	Metadata   dag.Metadata `json:"metadata"`
	Populated  bool         `json:"populated"`
	Generation uint64       `json:"generation"`
}

// NodeCount returns the number of nodes in the snapshot.
func (s Snapshot) NodeCount() int { return len(s.Graph.Nodes) }

// EdgeCount returns the number of edges in the snapshot.
func (s Snapshot) EdgeCount() int { return len(s.Graph.Edges) }

type layerState struct {
	graph     dag.Graph
	meta      dag.Metadata
	populated bool
	issued    uint64 // last generation handed out by Begin
	committed uint64 // generation of the visible content
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier sets the notifier that receives change events.
func WithNotifier(n *notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used for metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the in-memory four-layer model. It always holds exactly the four
// layers of [dag.Layers]. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	layers map[dag.Layer]*layerState

	notifier *notify.Notifier
	logger   *log.Logger
	now      func() time.Time
}

// New creates an empty store. Without [WithNotifier] the store owns a private
// notifier, reachable through [Store.Notifier].
func New(opts ...Option) *Store {
	s := &Store{
		layers: make(map[dag.Layer]*layerState, 4),
		logger: log.Default(),
		now:    time.Now,
	}
	for _, l := range dag.Layers() {
		s.layers[l] = &layerState{graph: emptyGraph()}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.New(s.logger)
	}
	return s
}

// Notifier returns the notifier change events are emitted on.
func (s *Store) Notifier() *notify.Notifier { return s.notifier }

// LoadLayer replaces the content of layer with in. It fails with
// INVALID_LAYER for a layer outside the fixed four and with
// UNSUPPORTED_INPUT when in is nil or not one of the input variants.
func (s *Store) LoadLayer(layer dag.Layer, in Input) error {
	tok, err := s.Begin(layer)
	if err != nil {
		return err
	}
	_, err = s.Commit(tok, in)
	return err
}

// Begin reserves the next generation of layer.
func (s *Store) Begin(layer dag.Layer) (Token, error) {
	if !layer.Valid() {
		return Token{}, invalidLayer(layer)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.layers[layer]
	st.issued++
	return Token{layer: layer, gen: st.issued}, nil
}

// Commit stores in as the content of the token's layer. It reports false
// without error when a commit with a newer generation has already landed.
// Input is converted before the lock is taken; on error the previous content
// is kept.
func (s *Store) Commit(tok Token, in Input) (bool, error) {
	if !tok.layer.Valid() {
		return false, invalidLayer(tok.layer)
	}
	g, meta, err := s.convert(in)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	st := s.layers[tok.layer]
	if tok.gen < st.committed {
		s.mu.Unlock()
		s.logger.Debug("discarded stale commit", "layer", tok.layer, "generation", tok.gen, "current", st.committed)
		return false, nil
	}
	st.graph, st.meta, st.populated, st.committed = g, meta, true, tok.gen
	ev := notify.LayerChanged{Layer: tok.layer, NodeCount: len(g.Nodes), EdgeCount: len(g.Edges)}
	s.mu.Unlock()

	s.logger.Debug("layer committed", "layer", tok.layer, "nodes", ev.NodeCount, "edges", ev.EdgeCount, "source", meta.SourceName)
	s.emit(ev)
	return true, nil
}

// ClearLayer empties one layer. It succeeds for every valid layer, including
// one that is already empty. Commits begun before the clear are discarded.
func (s *Store) ClearLayer(layer dag.Layer) error {
	if !layer.Valid() {
		return invalidLayer(layer)
	}
	s.mu.Lock()
	s.reset(layer)
	s.mu.Unlock()
	s.emit(notify.LayerChanged{Layer: layer})
	return nil
}

// ClearWith empties the token's layer unless a newer commit has landed. It
// reports whether the layer was cleared.
func (s *Store) ClearWith(tok Token) bool {
	if !tok.layer.Valid() {
		return false
	}
	s.mu.Lock()
	st := s.layers[tok.layer]
	if tok.gen < st.committed {
		s.mu.Unlock()
		return false
	}
	st.graph, st.meta, st.populated, st.committed = emptyGraph(), dag.Metadata{}, false, tok.gen
	s.mu.Unlock()
	s.emit(notify.LayerChanged{Layer: tok.layer})
	return true
}

// ClearAll empties all four layers.
func (s *Store) ClearAll() {
	s.mu.Lock()
	for _, l := range dag.Layers() {
		s.reset(l)
	}
	s.mu.Unlock()

	for _, l := range dag.Layers() {
		s.notifier.Emit(notify.LayerChanged{Layer: l})
	}
	s.notifier.Emit(notify.StatsChanged{Stats: stats.Compute(s)})
}

// reset must be called with s.mu held.
func (s *Store) reset(layer dag.Layer) {
	st := s.layers[layer]
	st.issued++
	st.graph, st.meta, st.populated, st.committed = emptyGraph(), dag.Metadata{}, false, st.issued
}

// GetLayer returns a deep copy of one layer.
func (s *Store) GetLayer(layer dag.Layer) (Snapshot, error) {
	if !layer.Valid() {
		return Snapshot{}, invalidLayer(layer)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.layers[layer]
	return Snapshot{
		Layer:      layer,
		Graph:      st.graph.Clone(),
		Metadata:   st.meta,
		Populated:  st.populated,
		Generation: st.committed,
	}, nil
}

// Snapshots returns copies of all four layers in canonical order.
func (s *Store) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, 4)
	for _, l := range dag.Layers() {
		snap, _ := s.GetLayer(l)
		out = append(out, snap)
	}
	return out
}

// NodeCount returns the number of nodes in layer, 0 for unknown layers.
func (s *Store) NodeCount(layer dag.Layer) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.layers[layer]; ok {
		return len(st.graph.Nodes)
	}
	return 0
}

// EdgeCount returns the number of edges in layer, 0 for unknown layers.
func (s *Store) EdgeCount(layer dag.Layer) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.layers[layer]; ok {
		return len(st.graph.Edges)
	}
	return 0
}

// Populated reports whether layer holds content from a successful load.
// A load that produced zero nodes still counts as populated.
func (s *Store) Populated(layer dag.Layer) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.layers[layer]
	return ok && st.populated
}

// Stats returns the current per-layer node counts.
func (s *Store) Stats() stats.Stats { return stats.Compute(s) }

func (s *Store) emit(ev notify.LayerChanged) {
	s.notifier.Emit(ev)
	s.notifier.Emit(notify.StatsChanged{Stats: stats.Compute(s)})
}

func (s *Store) convert(in Input) (dag.Graph, dag.Metadata, error) {
	var (
		g    dag.Graph
		meta dag.Metadata
	)
	switch v := in.(type) {
	case MermaidInput:
		g = mermaid.Parse(v.Text)
		meta = dag.Metadata{SourceName: v.SourceName, OriginTimestamp: v.Timestamp, RawMermaid: v.Text}
	case *MermaidInput:
		if v == nil {
			return g, meta, unsupportedInput(in)
		}
		return s.convert(*v)
	case StructuredInput:
		g = v.Graph.Normalize()
		meta = dag.Metadata{SourceName: v.SourceName, OriginTimestamp: v.Timestamp, RawMermaid: v.RawMermaid}
	case *StructuredInput:
		if v == nil {
			return g, meta, unsupportedInput(in)
		}
		return s.convert(*v)
	default:
		return g, meta, unsupportedInput(in)
	}
	if meta.OriginTimestamp.IsZero() {
		meta.OriginTimestamp = s.now()
	}
	return g, meta, nil
}

func invalidLayer(l dag.Layer) error {
	return errs.Wrap(errs.ErrCodeInvalidLayer, dag.ErrInvalidLayer, "unknown layer %q", string(l))
}

func unsupportedInput(v any) error {
	return errs.New(errs.ErrCodeUnsupportedInput, "input must be Mermaid text or a {nodes, edges} graph, got %s", describe(v))
}

func describe(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}

func emptyGraph() dag.Graph {
	return dag.Graph{Nodes: []dag.Node{}, Edges: []dag.Edge{}}
}
