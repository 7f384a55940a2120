// Package server exposes the detection and corpus APIs over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veriscan/veriscan/internal/detector"
	"github.com/veriscan/veriscan/internal/ingest"
)

// Probe checks one dependency for the health endpoint.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server wires handlers onto a chi router.
type Server struct {
	detector *detector.Detector
	ingestor *ingest.Ingestor
	probes   []Probe
	gatherer prometheus.Gatherer
	timeout  time.Duration
	log      *zap.Logger
}

// New creates the API server.
func New(det *detector.Detector, ing *ingest.Ingestor, probes []Probe,
	gatherer prometheus.Gatherer, requestTimeout time.Duration, log *zap.Logger) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Minute
	}
	return &Server{
		detector: det,
		ingestor: ing,
		probes:   probes,
		gatherer: gatherer,
		timeout:  requestTimeout,
		log:      log,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))

		r.Post("/check", s.handleCheck)
		r.Post("/documents", s.handleUpload)
		r.Post("/documents/batch", s.handleBatchUpload)
		r.Get("/documents", s.handleSearchDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
		r.Post("/pdf/index", s.handleIndexPDF)
		r.Post("/pdf/check", s.handleCheckPDF)
		r.Get("/health", s.handleHealth)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}
