// Package server exposes the compaction pipeline over HTTP.
//
// Routes:
//
//	POST /v1/compact   container in the body, compacted container out
//	POST /v1/inspect   container in the body, JSON statistics out
//	GET  /healthz      liveness
//	GET  /version      build information
//
// Query parameters of /v1/compact mirror the CLI flags: monitors
// (none|all|hidden), rename (true|false), enumeration (product|combinations),
// allow_external (true|false) and kind (project|sprite), which picks the JSON
// member when the upload has no telling name.
package server

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/sb3min/pkg/pipeline"
	"github.com/matzehuels/sb3min/pkg/report"
)

// DefaultMaxBodyBytes limits uploads when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 64 << 20

// Options configures a [Server].
type Options struct {
	// Defaults are the pipeline options requests start from.
	Defaults pipeline.Options

	MaxBodyBytes int64

	// Reports receives a record per successful compaction. Optional.
	Reports report.Sink

	Logger *log.Logger
}

// Server serves the HTTP API.
type Server struct {
	runner   *pipeline.Runner
	defaults pipeline.Options
	maxBody  int64
	reports  report.Sink
	logger   *log.Logger
}

// New returns a server that runs requests through runner.
func New(runner *pipeline.Runner, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	opts.Defaults.Logger = opts.Logger
	return &Server{
		runner:   runner,
		defaults: opts.Defaults,
		maxBody:  opts.MaxBodyBytes,
		reports:  opts.Reports,
		logger:   opts.Logger,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/zip", "application/octet-stream", "application/x-zip-compressed"))
		r.Post("/compact", s.handleCompact)
		r.Post("/inspect", s.handleInspect)
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

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
