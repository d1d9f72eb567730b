package cli

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/dagplanner/pkg/cache"
	"github.com/matzehuels/dagplanner/pkg/config"
	"github.com/matzehuels/dagplanner/pkg/reconcile"
	"github.com/matzehuels/dagplanner/pkg/remote"
	"github.com/matzehuels/dagplanner/pkg/store"
)

// session is a layer store wired to the configured sources.
type session struct {
	engine *reconcile.Engine
	store  *store.Store
	cache  cache.Cache
	remote *remote.Client // nil when no record server is configured
}

// openSession builds a session for the configured project. The caller must
// Close it.
func (c *CLI) openSession(ctx context.Context) (*session, error) {
	logger := loggerFromContext(ctx)

	cc, err := openCache(ctx, c.cfg, logger)
	if err != nil {
		return nil, err
	}
	rc, err := newRemote(c.cfg, logger)
	if err != nil {
		cc.Close()
		return nil, err
	}

	st := store.New(store.WithLogger(logger))
	opts := []reconcile.Option{
		reconcile.WithLogger(logger),
		reconcile.WithTimeout(c.cfg.Remote.Timeout),
		reconcile.WithCacheKey(c.cfg.Cache.Key),
		reconcile.WithCacheTTL(c.cfg.Cache.TTL),
	}
	// A nil *remote.Client must not become a non-nil interface.
	var rs reconcile.RemoteSource
	if rc != nil {
		rs = rc
	}
	return &session{
		engine: reconcile.New(st, rs, cc, opts...),
		store:  st,
		cache:  cc,
		remote: rc,
	}, nil
}

// Close releases the cache backend.
func (s *session) Close() error { return s.cache.Close() }

// seed populates the session and logs where the data came from.
func (s *session) seed(ctx context.Context) reconcile.Result {
	res := s.engine.Sync(ctx)
	logger := loggerFromContext(ctx)
	if res.RemoteErr != nil {
		logger.Debug("record server unavailable", "err", res.RemoteErr)
	}
	if res.CacheErr != nil {
		logger.Debug("local cache unavailable", "err", res.CacheErr)
	}
	return res
}

// openCache builds the configured cache backend, scoped to the project
// when one is set. An unreachable Redis falls back to no cache.
func openCache(ctx context.Context, cfg *config.Config, logger *log.Logger) (cache.Cache, error) {
	var base cache.Cache
	switch cfg.Cache.Backend {
	case "none":
		base = cache.NewNullCache()
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.Cache.RedisAddr})
		if err != nil {
			logger.Warn("redis cache unavailable, continuing without cache", "addr", cfg.Cache.RedisAddr, "err", err)
			base = cache.NewNullCache()
		} else {
			base = rc
		}
	default:
		fc, err := cache.NewFileCache(cfg.Cache.Dir)
		if err != nil {
			return nil, err
		}
		base = fc
	}
	if cfg.Project.Root != "" {
		return cache.Scoped(base, cache.ProjectPrefix(cfg.Project.Root)), nil
	}
	return base, nil
}

// newRemote returns a record server client, or nil when none is configured.
func newRemote(cfg *config.Config, logger *log.Logger) (*remote.Client, error) {
	if cfg.Remote.URL == "" {
		return nil, nil
	}
	opts := []remote.Option{
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		remote.WithRetries(cfg.Remote.Retries, 0),
		remote.WithLogger(logger),
	}
	if cfg.Project.Root != "" {
		opts = append(opts, remote.WithProjectPath(cfg.Project.Root))
	}
	return remote.NewClient(cfg.Remote.URL, opts...)
}
