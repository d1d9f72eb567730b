package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/dagplanner/pkg/cache"
	"github.com/matzehuels/dagplanner/pkg/dag"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/mermaid"
	"github.com/matzehuels/dagplanner/pkg/observability"
	"github.com/matzehuels/dagplanner/pkg/push"
	"github.com/matzehuels/dagplanner/pkg/remote"
	"github.com/matzehuels/dagplanner/pkg/stats"
	"github.com/matzehuels/dagplanner/pkg/store"
)

const (
	// DefaultCacheKey is the cache key of the consolidated layer blob.
	DefaultCacheKey = "dagplanner:layers"

	// DefaultTimeout bounds the remote query of one sync.
	DefaultTimeout = 5 * time.Second
)

// RemoteSource lists the records of the remote store.
type RemoteSource interface {
	FetchRecords(ctx context.Context) (remote.Response, error)
}

// Source names where a sync got its data from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
	SourceNone   Source = "none"
)

// Result describes the outcome of a sync.
type Result struct {
	Source Source

	// Loaded lists the layers committed from Source, in canonical order.
	Loaded []dag.Layer

	// Discarded lists layers whose sync result lost to a newer commit.
	Discarded []dag.Layer

	Stats stats.Stats

	// RemoteErr and CacheErr are diagnostic only.
	RemoteErr error
	CacheErr  error

	Duration time.Duration
}

// Empty reports whether no source supplied data. A source that supplied
// layers with zero nodes is not empty.
func (r Result) Empty() bool { return r.Source == SourceNone }

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTimeout bounds the remote query of each sync.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithCacheKey overrides the cache key of the layer blob.
func WithCacheKey(key string) Option {
	return func(e *Engine) {
		if key != "" {
			e.cacheKey = key
		}
	}
}

// WithCacheTTL sets the expiry of the persisted layer blob. Zero keeps it
// until overwritten.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.ttl = max(ttl, 0) }
}

// Engine reconciles a store against the remote store, the local cache and
// push updates.
type Engine struct {
	store  *store.Store
	remote RemoteSource
	cache  cache.Cache

	logger   *log.Logger
	timeout  time.Duration
	cacheKey string
	ttl      time.Duration
}

// New creates an engine for st. A nil remote means no remote store is
// configured; a nil cache disables the local cache.
func New(st *store.Store, rs RemoteSource, c cache.Cache, opts ...Option) *Engine {
	if c == nil {
		c = cache.NewNullCache()
	}
	e := &Engine{
		store:    st,
		remote:   rs,
		cache:    c,
		logger:   log.Default(),
		timeout:  DefaultTimeout,
		cacheKey: DefaultCacheKey,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the store the engine writes to.
func (e *Engine) Store() *store.Store { return e.store }

// CacheKey returns the key of the layer blob.
func (e *Engine) CacheKey() string { return e.cacheKey }

// Sync populates the store from the first source that has data. It never
// fails; see [Result] for what happened.
//
// The winning source replaces the whole session: layers it does not supply
// are cleared. When no source has data the store is left untouched.
func (e *Engine) Sync(ctx context.Context) Result {
	start := time.Now()
	tokens := make(map[dag.Layer]store.Token, 4)
	for _, l := range dag.Layers() {
		tokens[l], _ = e.store.Begin(l)
	}

	res := Result{Source: SourceNone}
	var (
		graphs map[dag.Layer]store.Input
		err    error
	)
	if e.remote == nil {
		e.logger.Debug("no remote store configured")
	} else {
		graphs, err = e.fromRemote(ctx)
	}
	switch {
	case err != nil:
		res.RemoteErr = err
		e.logger.Warn("remote store unavailable, falling back to local cache", "err", errs.UserMessage(err))
		observability.Sync().OnSourceUnavailable(ctx, string(SourceRemote), err)
	case len(graphs) > 0:
		res.Source = SourceRemote
	}

	if res.Source == SourceNone {
		graphs, err = e.fromCache(ctx)
		switch {
		case err != nil:
			res.CacheErr = err
			e.logger.Warn("local cache unreadable", "err", err)
			observability.Sync().OnSourceUnavailable(ctx, string(SourceCache), err)
		case len(graphs) > 0:
			res.Source = SourceCache
		}
	}

	if res.Source != SourceNone {
		for _, l := range dag.Layers() {
			in, ok := graphs[l]
			if !ok {
				e.store.ClearWith(tokens[l])
				continue
			}
			applied, err := e.store.Commit(tokens[l], in)
			switch {
			case err != nil:
				e.logger.Warn("layer rejected", "layer", l, "err", err)
			case applied:
				res.Loaded = append(res.Loaded, l)
			default:
				res.Discarded = append(res.Discarded, l)
			}
		}
	}

	res.Stats = e.store.Stats()
	res.Duration = time.Since(start)
	e.logger.Info("session synced", "source", res.Source, "layers", len(res.Loaded), "nodes", res.Stats.Total(), "elapsed", res.Duration.Round(time.Millisecond))
	observability.Sync().OnSyncComplete(ctx, string(res.Source), len(res.Loaded), res.Duration)
	return res
}

// fromRemote queries the remote store and parses the newest record of every
// layer. Layers are parsed concurrently; they do not depend on each other.
func (e *Engine) fromRemote(ctx context.Context) (map[dag.Layer]store.Input, error) {
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.remote.FetchRecords(qctx)
	if err != nil {
		if errs.GetCode(err) == "" {
			err = errs.Wrap(errs.ErrCodeSourceUnavailable, err, "query remote store")
		}
		return nil, err
	}
	if !resp.Success {
		return nil, errs.New(errs.ErrCodeSourceUnavailable, "remote store reported failure")
	}
	if resp.RecordCount() == 0 {
		e.logger.Debug("remote store has no records")
		return nil, nil
	}

	type picked struct {
		layer dag.Layer
		rec   remote.Record
		text  string
	}
	var todo []picked
	for _, l := range dag.Layers() {
		rec, text, ok := remote.Latest(resp.Records(l))
		if !ok {
			continue
		}
		todo = append(todo, picked{layer: l, rec: rec, text: text})
	}

	parsed := make([]store.Input, len(todo))
	var g errgroup.Group
	g.SetLimit(len(dag.Layers()))
	for i, p := range todo {
		g.Go(func() error {
			parsed[i] = store.StructuredInput{
				Graph:      mermaid.Parse(p.text),
				SourceName: p.rec.FileName,
				Timestamp:  p.rec.Time(),
				RawMermaid: p.text,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[dag.Layer]store.Input, len(todo))
	for i, p := range todo {
		out[p.layer] = parsed[i]
	}
	return out, nil
}

// fromCache reads the layer blob. A missing blob is not an error.
func (e *Engine) fromCache(ctx context.Context) (map[dag.Layer]store.Input, error) {
	data, ok, err := e.cache.Get(ctx, e.cacheKey)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeCacheUnavailable, err, "read local cache")
	}
	if !ok {
		return nil, nil
	}
	var blob map[string]dag.Graph
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, errs.Wrap(errs.ErrCodeCacheUnavailable, err, "decode local cache blob")
	}
	out := make(map[dag.Layer]store.Input, len(blob))
	for key, g := range blob {
		l, err := dag.ParseLayer(key)
		if err != nil {
			e.logger.Warn("ignoring unknown layer in local cache", "layer", key)
			continue
		}
		out[l] = store.StructuredInput{Graph: g, SourceName: string(SourceCache)}
	}
	return out, nil
}

// ApplyExternalUpdate replaces the layer named by u with its Mermaid text.
// Other layers are untouched. An update naming an unknown layer is logged
// and dropped. It reports whether the update was applied.
func (e *Engine) ApplyExternalUpdate(u push.Update) bool {
	ctx := context.Background()
	layer, err := dag.ParseLayer(u.Layer)
	if err != nil {
		err = errs.Wrap(errs.ErrCodeMalformedPush, err, "push update for layer %q", u.Layer)
		e.logger.Warn("dropping push update", "err", errs.UserMessage(err), "layer", u.Layer)
		observability.Sync().OnPushDropped(ctx, "invalid_layer")
		return false
	}
	source := u.Source
	if source == "" {
		source = "push"
	}
	if err := e.store.LoadLayer(layer, store.MermaidInput{Text: u.MermaidSource, SourceName: source}); err != nil {
		e.logger.Warn("dropping push update", "layer", layer, "err", err)
		observability.Sync().OnPushDropped(ctx, "rejected")
		return false
	}
	e.logger.Debug("push update applied", "layer", layer, "nodes", e.store.NodeCount(layer))
	observability.Sync().OnPushApplied(ctx, string(layer))
	return true
}

// Run applies updates from ch until ch is closed or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, ch <-chan push.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-ch:
			if !ok {
				return nil
			}
			e.ApplyExternalUpdate(u)
		}
	}
}

// PersistToLocalCache writes nodes and edges of all four layers as one blob
// under the cache key. Metadata is not persisted.
func (e *Engine) PersistToLocalCache(ctx context.Context) error {
	data, err := json.Marshal(e.store.Graphs())
	if err != nil {
		return fmt.Errorf("encode layers: %w", err)
	}
	if err := e.cache.Set(ctx, e.cacheKey, data, e.ttl); err != nil {
		return errs.Wrap(errs.ErrCodeCacheUnavailable, err, "write local cache")
	}
	return nil
}

// ClearLocalCache removes the layer blob.
func (e *Engine) ClearLocalCache(ctx context.Context) error {
	if err := e.cache.Delete(ctx, e.cacheKey); err != nil {
		return errs.Wrap(errs.ErrCodeCacheUnavailable, err, "clear local cache")
	}
	return nil
}
