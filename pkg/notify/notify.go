// Package notify is the change notifier of the layer store.
//
// It is a synchronous pub/sub: [Notifier.Emit] calls every handler in
// subscription order on the caller's goroutine before returning. A handler
// that panics is logged and skipped; the remaining handlers still run.
// Events are emitted only after the mutation they describe is committed.
package notify

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagplanner/pkg/dag"
	"github.com/matzehuels/dagplanner/pkg/stats"
)

// Kind names an event type.
type Kind string

const (
	KindLayerChanged Kind = "layer_changed"
	KindStatsChanged Kind = "stats_changed"
)

// Event is a change notification.
type Event interface {
	Kind() Kind
}

// LayerChanged is emitted after a layer's content was committed or cleared.
type LayerChanged struct {
	Layer     dag.Layer `json:"layer"`
	NodeCount int       `json:"nodeCount"`
	EdgeCount int       `json:"edgeCount"`
}

func (LayerChanged) Kind() Kind { return KindLayerChanged }

// StatsChanged carries the per-layer node counts after a mutation.
type StatsChanged struct {
	Stats stats.Stats `json:"stats"`
}

func (StatsChanged) Kind() Kind { return KindStatsChanged }

// Handler receives events.
type Handler interface {
	Handle(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

func (f HandlerFunc) Handle(e Event) { f(e) }

type subscription struct {
	id uint64
	h  Handler
}

// Notifier dispatches events to subscribed handlers.
// The zero value is not usable; use [New].
type Notifier struct {
	mu     sync.Mutex
	subs   []subscription
	nextID uint64
	logger *log.Logger
}

// New creates a Notifier. A nil logger means log.Default().
func New(logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Default()
	}
	return &Notifier{logger: logger}
}

// Subscribe registers h and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (n *Notifier) Subscribe(h Handler) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription{id: id, h: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			n.subs = slices.DeleteFunc(n.subs, func(s subscription) bool { return s.id == id })
		})
	}
}

// SubscribeFunc is Subscribe for a plain function.
func (n *Notifier) SubscribeFunc(f func(Event)) (unsubscribe func()) {
	return n.Subscribe(HandlerFunc(f))
}

// Len returns the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

// Emit delivers e to every handler in subscription order.
// Handlers subscribed or removed during delivery take effect on the next Emit.
func (n *Notifier) Emit(e Event) {
	n.mu.Lock()
	subs := slices.Clone(n.subs)
	n.mu.Unlock()

	for _, s := range subs {
		n.deliver(s.h, e)
	}
}

func (n *Notifier) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("change handler panicked", "event", e.Kind(), "panic", r)
		}
	}()
	h.Handle(e)
}
