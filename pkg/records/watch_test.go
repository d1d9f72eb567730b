package records

import (
	"context"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagplanner/pkg/dag"
	"github.com/matzehuels/dagplanner/pkg/push"
)

func TestWatcherEmitsUpdates(t *testing.T) {
	s := newFileStore(t)
	w := NewWatcher(s, log.New(&discard{})).WithDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan push.Update, 4)
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, func(u push.Update) { updates <- u }) }()

	// give fsnotify time to register the directory
	time.Sleep(100 * time.Millisecond)

	r := mustRecord(t, dag.LayerCode, "main.go --> util.go", time.Now())
	if err := s.Save(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	select {
	case u := <-updates:
		if u.Layer != "code" || u.MermaidSource != "main.go --> util.go" {
			t.Errorf("update = %+v", u)
		}
		if u.Source != "file:"+r.FileName {
			t.Errorf("Source = %q", u.Source)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no update emitted")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
