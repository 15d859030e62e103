// Package web provides the HTTP API for submitting and querying meter readings.
package web

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/septivank/meter-readings/internal/domain"
	"github.com/septivank/meter-readings/internal/query"
	"go.uber.org/zap"
)

// Ingester accepts readings for validation and persistence
type Ingester interface {
	Ingest(ctx context.Context, candidates []domain.CandidateReading) (*domain.IngestResult, error)
	IngestCSV(ctx context.Context, r io.Reader) (*domain.IngestResult, error)
}

// ReadingFinder answers read-only queries over stored readings
type ReadingFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.MeterReading, error)
	List(ctx context.Context, req query.PageRequest, accountID *int64) (*query.PageResult[domain.MeterReading], error)
	Ping(ctx context.Context) error
}

// Config holds HTTP settings
type Config struct {
	Addr           string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Server is the HTTP server for the meter readings API
type Server struct {
	ingester Ingester
	readings ReadingFinder
	cfg      Config
	logger   *zap.Logger
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance
func NewServer(cfg Config, ingester Ingester, finder ReadingFinder, logger *zap.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 1 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	s := &Server{
		ingester: ingester,
		readings: finder,
		cfg:      cfg,
		logger:   logger,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/meter-readings", s.handleListReadings)
		r.Get("/meter-readings/{id}", s.handleGetReading)
		r.Post("/meter-readings", s.handleSubmitReadings)
		r.Post("/meter-reading-uploads", s.handleUploadReadings)
	})
}

// Start begins listening for HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
