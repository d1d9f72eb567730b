// Package observability provides hooks for metrics and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Commands register hooks
// at startup; libraries call them to report events about session syncs,
// push updates, cache operations and remote store calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// [Prometheus] implements every hook interface on top of
// prometheus/client_golang; [Prometheus.Install] registers it.
//
// # Usage
//
//	func main() {
//	    metrics := observability.NewPrometheus(prometheus.NewRegistry())
//	    metrics.Install()
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	// ... sync ...
//	observability.Sync().OnSyncComplete(ctx, "remote", 3, time.Since(start))
package observability

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// Sync Hooks
// =============================================================================

// SyncHooks receives events from the session sync engine.
type SyncHooks interface {
	// OnSyncComplete records a finished session sync. source is "remote",
	// "cache" or "none"; layers is the number of layers loaded.
	OnSyncComplete(ctx context.Context, source string, layers int, duration time.Duration)

	// OnSourceUnavailable records a source that failed and was skipped.
	OnSourceUnavailable(ctx context.Context, source string, err error)

	// OnPushApplied records a push update that replaced a layer.
	OnPushApplied(ctx context.Context, layer string)

	// OnPushDropped records a push update that was discarded.
	OnPushDropped(ctx context.Context, reason string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, backend string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, backend string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, backend string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopSyncHooks is a no-op implementation of SyncHooks.
type NoopSyncHooks struct{}

func (NoopSyncHooks) OnSyncComplete(context.Context, string, int, time.Duration) {}
func (NoopSyncHooks) OnSourceUnavailable(context.Context, string, error)         {}
func (NoopSyncHooks) OnPushApplied(context.Context, string)                      {}
func (NoopSyncHooks) OnPushDropped(context.Context, string)                      {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

// registry is replaced as a whole on every Set call, so the hot-path getters
// are a single atomic load.
type registry struct {
	sync  SyncHooks
	cache CacheHooks
	http  HTTPHooks
}

var (
	current atomic.Pointer[registry]
	setMu   sync.Mutex
)

func init() { Reset() }

func update(apply func(r *registry)) {
	setMu.Lock()
	defer setMu.Unlock()
	next := *current.Load()
	apply(&next)
	current.Store(&next)
}

// SetSyncHooks registers sync hooks. A nil h is ignored.
func SetSyncHooks(h SyncHooks) {
	if h != nil {
		update(func(r *registry) { r.sync = h })
	}
}

// SetCacheHooks registers cache hooks. A nil h is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		update(func(r *registry) { r.cache = h })
	}
}

// SetHTTPHooks registers remote store HTTP hooks. A nil h is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		update(func(r *registry) { r.http = h })
	}
}

// Sync returns the registered sync hooks.
func Sync() SyncHooks { return current.Load().sync }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return current.Load().cache }

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks { return current.Load().http }

// Reset restores the no-op hooks. Tests call it in cleanup.
func Reset() {
	setMu.Lock()
	defer setMu.Unlock()
	current.Store(&registry{sync: NoopSyncHooks{}, cache: NoopCacheHooks{}, http: NoopHTTPHooks{}})
}
