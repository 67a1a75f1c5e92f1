// Package server exposes the search engine over a small REST API: one-off
// lookups, asynchronous batch runs with status polling, and health.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aaronvstory/ReadySearch/internal/batch"
	"github.com/aaronvstory/ReadySearch/internal/store"
)

// Config tunes the HTTP surface.
type Config struct {
	Addr        string
	CORSOrigins []string
	Version     string
}

// Server serves search requests over a session pool. Batch runs execute in
// the background on a context that outlives the requests that started them
// but not the server itself. The store is optional; without one, run state
// lives only in this process.
type Server struct {
	cfg      Config
	pool     batch.SessionPool
	runner   batch.Runner
	batchCfg batch.Config
	store    store.Store

	registry *runRegistry
	group    *errgroup.Group
	runCtx   context.Context
	stopRuns context.CancelFunc
}

// New builds a server. st may be nil to run without persistence.
func New(cfg Config, pool batch.SessionPool, runner batch.Runner, batchCfg batch.Config, st store.Store) *Server {
	runCtx, stop := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		pool:     pool,
		runner:   runner,
		batchCfg: batchCfg,
		store:    st,
		registry: newRunRegistry(),
		group:    &errgroup.Group{},
		runCtx:   runCtx,
		stopRuns: stop,
	}
}

// Router assembles the chi routing tree with logging, request IDs, panic
// recovery, and CORS.
func (s *Server) Router() http.Handler {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/search", s.handleSearch)
		r.Post("/batch", s.handleBatchStart)
		r.Get("/batch/{id}", s.handleBatchStatus)
		r.Post("/batch/{id}/stop", s.handleBatchStop)
	})
	return r
}

// Start listens until ctx is canceled, then shuts the listener down and
// waits for in-flight batch runs to wind down. Canceling ctx also cancels
// active runs, so they abort between queries and still get persisted.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		s.stopRuns()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.String("addr", s.cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.stopRuns()
		return eris.Wrap(err, "server listen")
	}
	if err := s.group.Wait(); err != nil {
		return eris.Wrap(err, "drain batch runs")
	}
	return nil
}
