// Package api provides the HTTP surface of the advisory service.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/smartcover/heron/internal/chat"
	"github.com/smartcover/heron/internal/domain"
	"github.com/smartcover/heron/internal/recommend"
	"github.com/smartcover/heron/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, catalog domain.Catalog, engine *recommend.Engine, ruleEngine *rules.Engine, responder *chat.Responder, repo domain.Repository, cache domain.Cache, bus domain.EventBus, artifacts domain.ArtifactConfig, version string) *Server {
	handler := NewHandler(catalog, engine, ruleEngine, responder, repo, cache, bus, artifacts, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	rateLimit := RateLimitMiddleware(cache, cfg.RateLimit, time.Duration(cfg.RateLimitWindow)*time.Second)

	router.Route("/api", func(r chi.Router) {
		r.Use(rateLimit)

		// Service health and catalog
		r.Get("/health", handler.Health)
		r.Get("/products", handler.ListProducts)

		// Advisory pipeline
		r.Post("/recommend", handler.Recommend)
		r.Post("/risk-assessment", handler.AssessRisk)
		r.Post("/chat", handler.Chat)

		// Offline analysis artifacts
		r.Get("/customer-analysis", handler.CustomerAnalysis)
		r.Get("/data-summary", handler.DataSummary)

		// Stored results
		r.Get("/recommendations/{id}", handler.GetRecommendation)
		r.Get("/assessments/{id}", handler.GetAssessment)

		// Boost rule management
		r.Get("/rules", handler.ListRules)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
