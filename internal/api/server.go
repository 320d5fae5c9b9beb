// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/radar/internal/api/job"
	"github.com/newthinker/radar/internal/api/middleware"
	"github.com/newthinker/radar/internal/catalog"
	"github.com/newthinker/radar/internal/fetcher"
	"github.com/newthinker/radar/internal/metrics"
	"github.com/newthinker/radar/internal/report"
	"github.com/newthinker/radar/internal/scoring"
	"github.com/newthinker/radar/internal/storage/quote"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Runner starts fetch cycles.
type Runner interface {
	Run(ctx context.Context) (fetcher.Report, error)
	Running() bool
}

// Server represents the HTTP server for radar
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	deps       Dependencies
	jobs       *job.Store

	// base context of triggered cycles, cancelled on shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MetricsPath string
}

// Dependencies are the collaborators the handlers read from. Reports,
// Predictions, Runner and Metrics are optional.
type Dependencies struct {
	Quotes      quote.Store
	Catalog     *catalog.Catalog
	Reports     *report.Exporter
	Predictions fetcher.PredictionSource
	Runner      Runner
	Scoring     scoring.Options
	Metrics     *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Quotes == nil {
		return nil, fmt.Errorf("quote store is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		logger: logger,
		mux:    mux,
		deps:   deps,
		jobs:   job.NewStore(50, 24*time.Hour),
		ctx:    ctx,
		cancel: cancel,
	}

	var handler http.Handler = mux
	handler = metrics.LoggingMiddleware(logger)(handler)
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // brief generation waits on the LLM
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes(cfg)
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config) {
	auth := middleware.APIKeyAuth(cfg.APIKey)
	protect := func(h http.HandlerFunc) http.Handler { return auth(h) }

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.Handle("GET /api/quotes", protect(s.handleQuotes))
	s.mux.Handle("GET /api/quotes/{ticker}", protect(s.handleQuoteHistory))
	s.mux.Handle("GET /api/instruments", protect(s.handleInstruments))
	s.mux.Handle("GET /api/signals", protect(s.handleSignals))
	s.mux.Handle("GET /api/scoring", protect(s.handleScoring))
	s.mux.Handle("GET /api/polymarket", protect(s.handlePolymarket))
	s.mux.Handle("GET /api/digest", protect(s.handleDigest))
	s.mux.Handle("POST /api/brief", protect(s.handleBrief))
	s.mux.Handle("POST /api/fetch", protect(s.handleFetch))
	s.mux.Handle("GET /api/jobs", protect(s.handleJobs))
	s.mux.Handle("GET /api/jobs/{id}", protect(s.handleJob))

	if s.deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.cancel()
	return s.httpServer.Shutdown(ctx)
}
