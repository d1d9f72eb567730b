package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dagplanner"

// Prometheus implements SyncHooks, CacheHooks and HTTPHooks with Prometheus
// collectors registered on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	syncs        *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	unavailable  *prometheus.CounterVec
	pushApplied  *prometheus.CounterVec
	pushDropped  *prometheus.CounterVec
	cacheOps     *prometheus.CounterVec
	cacheBytes   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them on reg.
// A nil reg means a fresh registry.
func NewPrometheus(reg *prometheus.Registry) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	p := &Prometheus{
		registry: reg,
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syncs_total",
			Help:      "Session syncs by winning source.",
		}, []string{"source"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Session sync duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		unavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_unavailable_total",
			Help:      "Sources skipped during sync because they failed.",
		}, []string{"source"}),
		pushApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_applied_total",
			Help:      "Push updates applied, by layer.",
		}, []string{"layer"}),
		pushDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_dropped_total",
			Help:      "Push updates dropped, by reason.",
		}, []string{"reason"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Local cache operations.",
		}, []string{"backend", "result"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_written_bytes_total",
			Help:      "Bytes written to the local cache.",
		}, []string{"backend"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_client_requests_total",
			Help:      "Remote store requests by status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_client_request_duration_seconds",
			Help:      "Remote store request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_client_errors_total",
			Help:      "Remote store requests that failed without a response.",
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		p.syncs, p.syncDuration, p.unavailable, p.pushApplied, p.pushDropped,
		p.cacheOps, p.cacheBytes, p.httpRequests, p.httpDuration, p.httpErrors,
	)
	return p
}

// Install registers p as the global sync, cache and HTTP hooks.
func (p *Prometheus) Install() {
	SetSyncHooks(p)
	SetCacheHooks(p)
	SetHTTPHooks(p)
}

// Registry returns the registry the collectors live on.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) OnSyncComplete(_ context.Context, source string, _ int, d time.Duration) {
	p.syncs.WithLabelValues(source).Inc()
	p.syncDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (p *Prometheus) OnSourceUnavailable(_ context.Context, source string, _ error) {
	p.unavailable.WithLabelValues(source).Inc()
}

func (p *Prometheus) OnPushApplied(_ context.Context, layer string) {
	p.pushApplied.WithLabelValues(layer).Inc()
}

func (p *Prometheus) OnPushDropped(_ context.Context, reason string) {
	p.pushDropped.WithLabelValues(reason).Inc()
}

func (p *Prometheus) OnCacheHit(_ context.Context, backend string) {
	p.cacheOps.WithLabelValues(backend, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, backend string) {
	p.cacheOps.WithLabelValues(backend, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, backend string, size int) {
	p.cacheOps.WithLabelValues(backend, "set").Inc()
	p.cacheBytes.WithLabelValues(backend).Add(float64(size))
}

func (p *Prometheus) OnRequest(context.Context, string, string, string) {}

func (p *Prometheus) OnResponse(_ context.Context, method, _, path string, status int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (p *Prometheus) OnError(_ context.Context, method, _, path string, _ error) {
	p.httpErrors.WithLabelValues(method, path).Inc()
}

var (
	_ SyncHooks  = (*Prometheus)(nil)
	_ CacheHooks = (*Prometheus)(nil)
	_ HTTPHooks  = (*Prometheus)(nil)
)
