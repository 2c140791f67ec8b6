// Package api exposes the codec over HTTP: clients upload a DBZ stream and
// receive its header as JSON or its records as CSV or newline-delimited
// JSON. Conversion is streaming end to end; uploads are never buffered
// whole.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server holds the API server state
type Server struct {
	config  ServerConfig
	metrics *Metrics
	logger  zerolog.Logger
}

// NewServer creates a new API server
func NewServer(config ServerConfig, metrics *Metrics, logger zerolog.Logger) *Server {
	return &Server{
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

// Router builds the HTTP routing tree with all middleware configured
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link", requestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Health check (unprotected for probes)
	r.Get("/health", s.metrics.InstrumentHandler("GET", "/health", s.handleHealth))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyMiddleware(s.config.APIKey, s.metrics))

		r.Post("/convert", s.metrics.InstrumentHandler("POST", "/api/v1/convert", s.handleConvert))
		r.Post("/metadata", s.metrics.InstrumentHandler("POST", "/api/v1/metadata", s.handleMetadata))
	})

	return r
}

// StartServer starts the HTTP server with all routes configured
func StartServer(config ServerConfig, logger zerolog.Logger) error {
	metrics := NewMetrics()
	server := NewServer(config, metrics, logger)

	addr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	logger.Info().Str("addr", addr).Msg("starting dbz conversion server")

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
