package store

import (
	"encoding/json"
	stderrors "errors"
	"slices"
	"sync"
	"testing"

	"github.com/matzehuels/dagplanner/pkg/dag"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/mermaid"
	"github.com/matzehuels/dagplanner/pkg/notify"
	"github.com/matzehuels/dagplanner/pkg/stats"
)

func TestLoadLayerMermaid(t *testing.T) {
	s := New()
	if err := s.LoadLayer(dag.LayerFunction, Mermaid("A[x] --> B[y]")); err != nil {
		t.Fatalf("LoadLayer: %v", err)
	}
	snap, err := s.GetLayer(dag.LayerFunction)
	if err != nil {
		t.Fatalf("GetLayer: %v", err)
	}
	if !snap.Populated || snap.NodeCount() != 2 || snap.EdgeCount() != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Graph.Edges[0].ID != "A-B" {
		t.Errorf("edge id = %q", snap.Graph.Edges[0].ID)
	}
	if snap.Metadata.RawMermaid != "A[x] --> B[y]" {
		t.Errorf("raw source not kept: %q", snap.Metadata.RawMermaid)
	}
	if snap.Metadata.OriginTimestamp.IsZero() {
		t.Error("origin timestamp not set")
	}
}

func TestLoadLayerStructuredRepairsDanglingEdges(t *testing.T) {
	s := New()
	g := dag.Graph{
		Nodes: []dag.Node{{ID: "A", Label: "a"}},
		Edges: []dag.Edge{{Source: "A", Target: "Z"}},
	}
	if err := s.LoadLayer(dag.LayerCode, StructuredInput{Graph: g}); err != nil {
		t.Fatalf("LoadLayer: %v", err)
	}
	snap, _ := s.GetLayer(dag.LayerCode)
	if got := snap.Graph.NodeIDs(); !slices.Equal(got, []string{"A", "Z"}) {
		t.Errorf("nodes = %v, want [A Z]", got)
	}
	if got := labelOf(snap.Graph, "Z"); got != "Z" {
		t.Errorf("synthesized label = %q, want Z", got)
	}
}

func TestLoadLayerErrors(t *testing.T) {
	s := New()

	err := s.LoadLayer("unknown_layer", Mermaid("graph TD\nA-->B"))
	if !errs.Is(err, errs.ErrCodeInvalidLayer) {
		t.Errorf("invalid layer: err = %v, want INVALID_LAYER", err)
	}
	if !stderrors.Is(err, dag.ErrInvalidLayer) {
		t.Errorf("invalid layer error does not wrap dag.ErrInvalidLayer: %v", err)
	}

	if err := s.LoadLayer(dag.LayerFunction, nil); !errs.Is(err, errs.ErrCodeUnsupportedInput) {
		t.Errorf("nil input: err = %v, want UNSUPPORTED_INPUT", err)
	}
	var nilText *MermaidInput
	if err := s.LoadLayer(dag.LayerFunction, nilText); !errs.Is(err, errs.ErrCodeUnsupportedInput) {
		t.Errorf("nil pointer input: err = %v, want UNSUPPORTED_INPUT", err)
	}

	for _, l := range dag.Layers() {
		if s.Populated(l) {
			t.Errorf("failed loads populated %s", l)
		}
	}
}

func TestLoadLayerKeepsStateOnFailure(t *testing.T) {
	s := New()
	if err := s.LoadLayer(dag.LayerLogic, Mermaid("A --> B")); err != nil {
		t.Fatal(err)
	}
	_ = s.LoadLayer(dag.LayerLogic, nil)
	if s.NodeCount(dag.LayerLogic) != 2 {
		t.Errorf("failed load changed layer: %d nodes", s.NodeCount(dag.LayerLogic))
	}
}

func TestLoadLayerIdempotent(t *testing.T) {
	s := New()
	text := "A[a] --> B[b]\nB --> C\nD[d]"
	_ = s.LoadLayer(dag.LayerOrder, Mermaid(text))
	first, _ := s.GetLayer(dag.LayerOrder)
	_ = s.LoadLayer(dag.LayerOrder, Mermaid(text))
	second, _ := s.GetLayer(dag.LayerOrder)

	if !slices.Equal(first.Graph.NodeIDs(), second.Graph.NodeIDs()) {
		t.Errorf("nodes differ: %v vs %v", first.Graph.NodeIDs(), second.Graph.NodeIDs())
	}
	if !slices.Equal(first.Graph.EdgePairs(), second.Graph.EdgePairs()) {
		t.Errorf("edges differ: %v vs %v", first.Graph.EdgePairs(), second.Graph.EdgePairs())
	}
	for _, n := range first.Graph.Nodes {
		if got := labelOf(second.Graph, n.ID); got != n.Label {
			t.Errorf("label[%s] = %q, want %q", n.ID, got, n.Label)
		}
	}
}

func TestClearLayer(t *testing.T) {
	s := New()
	for _, l := range dag.Layers() {
		if err := s.ClearLayer(l); err != nil {
			t.Errorf("ClearLayer(%s) on empty layer: %v", l, err)
		}
	}
	_ = s.LoadLayer(dag.LayerFunction, Mermaid("A --> B"))
	_ = s.LoadLayer(dag.LayerCode, Mermaid("X --> Y"))
	if err := s.ClearLayer(dag.LayerFunction); err != nil {
		t.Fatal(err)
	}
	if s.Populated(dag.LayerFunction) || s.NodeCount(dag.LayerFunction) != 0 {
		t.Error("function layer not cleared")
	}
	if s.NodeCount(dag.LayerCode) != 2 {
		t.Error("clearing function touched code")
	}
	if err := s.ClearLayer("bogus"); !errs.Is(err, errs.ErrCodeInvalidLayer) {
		t.Errorf("ClearLayer(bogus) = %v", err)
	}

	s.ClearAll()
	if got := s.Stats(); got != (stats.Stats{}) {
		t.Errorf("stats after ClearAll = %+v", got)
	}
}

func TestGetLayerIsCopy(t *testing.T) {
	s := New()
	_ = s.LoadLayer(dag.LayerFunction, Mermaid("A --> B"))
	snap, _ := s.GetLayer(dag.LayerFunction)
	snap.Graph.Nodes[0].Label = "mutated"
	snap.Graph.Nodes = append(snap.Graph.Nodes, dag.Node{ID: "Z"})

	again, _ := s.GetLayer(dag.LayerFunction)
	if again.NodeCount() != 2 || again.Graph.Nodes[0].Label == "mutated" {
		t.Errorf("snapshot aliases store: %+v", again.Graph.Nodes)
	}
}

func TestStaleCommitDiscarded(t *testing.T) {
	s := New()
	older, _ := s.Begin(dag.LayerLogic)
	newer, _ := s.Begin(dag.LayerLogic)

	if ok, err := s.Commit(newer, Mermaid("N1 --> N2")); !ok || err != nil {
		t.Fatalf("newer commit = %v, %v", ok, err)
	}
	ok, err := s.Commit(older, Mermaid("O1 --> O2 --> O3"))
	if err != nil || ok {
		t.Fatalf("stale commit = %v, %v; want discarded", ok, err)
	}
	snap, _ := s.GetLayer(dag.LayerLogic)
	if got := snap.Graph.NodeIDs(); !slices.Equal(got, []string{"N1", "N2"}) {
		t.Errorf("nodes = %v, want newer content", got)
	}
}

func TestCommitInOrderWins(t *testing.T) {
	s := New()
	first, _ := s.Begin(dag.LayerCode)
	second, _ := s.Begin(dag.LayerCode)

	// older lands first, then newer overwrites it
	if ok, _ := s.Commit(first, Mermaid("A --> B")); !ok {
		t.Fatal("first commit discarded")
	}
	if ok, _ := s.Commit(second, Mermaid("C --> D")); !ok {
		t.Fatal("second commit discarded")
	}
	snap, _ := s.GetLayer(dag.LayerCode)
	if got := snap.Graph.NodeIDs(); !slices.Equal(got, []string{"C", "D"}) {
		t.Errorf("nodes = %v", got)
	}
}

func TestClearDiscardsInflightCommit(t *testing.T) {
	s := New()
	tok, _ := s.Begin(dag.LayerOrder)
	_ = s.ClearLayer(dag.LayerOrder)
	if ok, _ := s.Commit(tok, Mermaid("A --> B")); ok {
		t.Error("commit begun before clear was applied")
	}
}

func TestNotifications(t *testing.T) {
	n := notify.New(nil)
	s := New(WithNotifier(n))

	var events []notify.Event
	n.SubscribeFunc(func(e notify.Event) {
		// the mutation is visible to handlers
		if lc, ok := e.(notify.LayerChanged); ok && s.NodeCount(lc.Layer) != lc.NodeCount {
			t.Errorf("handler saw uncommitted state for %s", lc.Layer)
		}
		events = append(events, e)
	})

	_ = s.LoadLayer(dag.LayerFunction, Mermaid("A --> B --> C"))

	if len(events) != 2 {
		t.Fatalf("events = %v, want layer + stats", events)
	}
	lc, ok := events[0].(notify.LayerChanged)
	if !ok || lc.Layer != dag.LayerFunction || lc.NodeCount != 3 || lc.EdgeCount != 2 {
		t.Errorf("layer event = %+v", events[0])
	}
	sc, ok := events[1].(notify.StatsChanged)
	if !ok || sc.Stats != (stats.Stats{Function: 3}) {
		t.Errorf("stats event = %+v", events[1])
	}
}

func TestPanickingHandlerDoesNotCorruptStore(t *testing.T) {
	s := New()
	s.Notifier().SubscribeFunc(func(notify.Event) { panic("handler failure") })

	if err := s.LoadLayer(dag.LayerLogic, Mermaid("A --> B")); err != nil {
		t.Fatal(err)
	}
	if s.NodeCount(dag.LayerLogic) != 2 {
		t.Error("commit lost after handler panic")
	}
}

func TestStatsAfterLoad(t *testing.T) {
	s := New()
	_ = s.LoadLayer(dag.LayerFunction, Mermaid("A[a] --> B[b]\nB --> C"))
	_ = s.LoadLayer(dag.LayerOrder, Mermaid(""))

	want := stats.Stats{Function: 3}
	if got := stats.Compute(s); got != want {
		t.Errorf("Compute() = %+v, want %+v", got, want)
	}
	if !s.Populated(dag.LayerOrder) {
		t.Error("empty load should still mark the layer populated")
	}
}

func TestExportAll(t *testing.T) {
	s := New()
	_ = s.LoadLayer(dag.LayerFunction, Mermaid("A[Alpha] --> B\nB --> C"))
	_ = s.LoadLayer(dag.LayerCode, Mermaid("x --> y"))

	t.Run("JSON", func(t *testing.T) {
		data, err := s.ExportAll(FormatJSON)
		if err != nil {
			t.Fatal(err)
		}
		var got map[string]LayerExport
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != 4 {
			t.Errorf("layers = %d, want 4", len(got))
		}
		if len(got["function"].Nodes) != 3 || got["logic"].Nodes == nil {
			t.Errorf("export = %+v", got)
		}
	})

	t.Run("MermaidRoundTrip", func(t *testing.T) {
		data, err := s.ExportAll(FormatMermaid)
		if err != nil {
			t.Fatal(err)
		}
		parts := mermaid.SplitComposite(string(data))
		for _, l := range []dag.Layer{dag.LayerFunction, dag.LayerCode} {
			before, _ := s.GetLayer(l)
			after := mermaid.Parse(parts[l])
			if !slices.Equal(before.Graph.EdgePairs(), after.EdgePairs()) {
				t.Errorf("%s edges = %v, want %v", l, after.EdgePairs(), before.Graph.EdgePairs())
			}
		}
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		if _, err := s.ExportAll("yaml"); !errs.Is(err, errs.ErrCodeInvalidFormat) {
			t.Errorf("err = %v, want INVALID_FORMAT", err)
		}
	})
}

func TestExportLayer(t *testing.T) {
	s := New()
	_ = s.LoadLayer(dag.LayerLogic, StructuredInput{Graph: dag.Graph{
		Nodes: []dag.Node{{ID: "A", Label: "check input"}, {ID: "B"}, {ID: "lone", Label: "Lone"}},
		Edges: []dag.Edge{{Source: "A", Target: "B"}},
	}})

	data, err := s.ExportLayer(dag.LayerLogic, FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	back := mermaid.Parse(string(data))
	if got := back.NodeIDs(); !slices.Equal(got, []string{"A", "B", "lone"}) {
		t.Errorf("nodes = %v, want [A B lone]", got)
	}
	if got := labelOf(back, "A"); got != "check input" {
		t.Errorf("label = %q, want %q", got, "check input")
	}

	data, err = s.ExportLayer(dag.LayerLogic, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	var got LayerExport
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Nodes) != 3 || len(got.Edges) != 1 {
		t.Errorf("export = %+v", got)
	}

	if _, err := s.ExportLayer("bogus", FormatJSON); !errs.Is(err, errs.ErrCodeInvalidLayer) {
		t.Errorf("err = %v, want INVALID_LAYER", err)
	}
	if _, err := s.ExportLayer(dag.LayerLogic, "yaml"); !errs.Is(err, errs.ErrCodeInvalidFormat) {
		t.Errorf("err = %v, want INVALID_FORMAT", err)
	}
}

func TestLoadComposite(t *testing.T) {
	src := New()
	_ = src.LoadLayer(dag.LayerFunction, Mermaid("A --> B"))
	_ = src.LoadLayer(dag.LayerOrder, Mermaid("s1 --> s2\ns2 --> s3"))
	data, _ := src.ExportAll(FormatMermaid)

	dst := New()
	_ = dst.LoadLayer(dag.LayerCode, Mermaid("keep --> me"))
	loaded, err := dst.LoadComposite(string(data), "file:plan.mmd")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(loaded, dag.Layers()) {
		t.Errorf("loaded = %v, want all four sections", loaded)
	}
	order, _ := dst.GetLayer(dag.LayerOrder)
	if got := order.Graph.EdgePairs(); !slices.Equal(got, [][2]string{{"s1", "s2"}, {"s2", "s3"}}) {
		t.Errorf("order edges = %v", got)
	}
	if order.Metadata.SourceName != "file:plan.mmd" {
		t.Errorf("source = %q", order.Metadata.SourceName)
	}
	if dst.NodeCount(dag.LayerCode) != 0 {
		t.Error("empty code section should replace the layer")
	}

	if _, err := New().LoadComposite("graph TD\nA --> B\n", ""); !errs.Is(err, errs.ErrCodeUnsupportedInput) {
		t.Errorf("err = %v, want UNSUPPORTED_INPUT", err)
	}
}

func labelOf(g dag.Graph, id string) string {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n.Label
		}
	}
	return ""
}

func TestConcurrentLoads(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l := dag.Layers()[i%4]
			_ = s.LoadLayer(l, Mermaid("A --> B"))
			_ = s.Stats()
		}(i)
	}
	wg.Wait()
	for _, l := range dag.Layers() {
		if s.NodeCount(l) != 2 {
			t.Errorf("%s nodes = %d", l, s.NodeCount(l))
		}
	}
}

func TestClearWithToken(t *testing.T) {
	s := New()
	_ = s.LoadLayer(dag.LayerFunction, Mermaid("A --> B"))

	stale, _ := s.Begin(dag.LayerFunction)
	_ = s.LoadLayer(dag.LayerFunction, Mermaid("C --> D"))
	if s.ClearWith(stale) {
		t.Error("stale clear applied")
	}
	if s.NodeCount(dag.LayerFunction) != 2 {
		t.Error("stale clear removed newer content")
	}

	fresh, _ := s.Begin(dag.LayerFunction)
	if !s.ClearWith(fresh) || s.Populated(dag.LayerFunction) {
		t.Error("fresh clear not applied")
	}
}
