// Package server is the HTTP remote store that sync clients query.
//
// Routes:
//
//	GET    /api/dag-data        saved records, grouped by layer, newest first
//	POST   /api/records         save a record and broadcast it as a push update
//	GET    /api/records/{id}    one record
//	DELETE /api/records/{id}    delete a record
//	GET    /api/events          Server-Sent Events stream of push updates
//	GET    /api/stats           record counts per layer
//	GET    /metrics             Prometheus metrics (when configured)
//	GET    /healthz             liveness
//
// Every /api route accepts an optional project_path query parameter that
// the [Resolver] maps to a record store.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/matzehuels/dagplanner/pkg/push"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server serves the record store over HTTP.
type Server struct {
	resolve Resolver
	hub     *push.Hub
	metrics http.Handler
	origins []string
	logger  *log.Logger
	now     func() time.Time
}

// New creates a server. hub may be nil, in which case saves are not
// broadcast and /api/events is not mounted.
func New(resolve Resolver, hub *push.Hub, opts ...Option) *Server {
	s := &Server{
		resolve: resolve,
		hub:     hub,
		origins: []string{"*"},
		logger:  log.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/dag-data", s.dagData)
		r.Get("/stats", s.stats)
		r.Route("/records", func(r chi.Router) {
			r.Post("/", s.saveRecord)
			r.Get("/{id}", s.getRecord)
			r.Delete("/{id}", s.deleteRecord)
		})
		if s.hub != nil {
			r.Method(http.MethodGet, "/events", s.hub)
		}
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.hub != nil {
		go s.hub.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("records server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
