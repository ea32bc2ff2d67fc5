// Package server exposes the analysis pipeline over HTTP: entry lookup,
// trailing-window history, manual override, and on-demand generation.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"adpulse/internal/analysis"
	"adpulse/internal/config"
	"adpulse/internal/core"
	"adpulse/internal/logger"
)

// Store is the read surface of the persistence layer the server needs.
type Store interface {
	Get(ctx context.Context, day time.Time, fingerprint string) (*core.CacheEntry, error)
	Ping(ctx context.Context) error
}

// HistoryService lists history and writes manual overrides.
type HistoryService interface {
	ListHistory(ctx context.Context, fingerprint string) ([]core.HistoryItem, error)
	ReadByDay(ctx context.Context, fingerprint string, day time.Time) (string, error)
	Save(ctx context.Context, fingerprint, text string) error
}

// GenerationService drives the generation pipeline.
type GenerationService interface {
	EnsureAnalysis(ctx context.Context, req analysis.Request) (core.AnalysisResult, error)
}

// DataSource supplies the campaign rows the generate endpoint analyzes.
type DataSource interface {
	FetchRecords(ctx context.Context) ([]core.CampaignRecord, error)
}

// Server represents the HTTP server.
type Server struct {
	router      *chi.Mux
	httpServer  *http.Server
	store       Store
	history     HistoryService
	coordinator GenerationService
	source      DataSource
	config      config.Server
	periodDays  int
	log         *slog.Logger
}

// New creates a new HTTP server instance. source may be nil, in which case
// the generate endpoint reports the capability as unavailable.
func New(store Store, history HistoryService, coordinator GenerationService, source DataSource, cfg config.Server, periodDays int) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		store:       store,
		history:     history,
		coordinator: coordinator,
		source:      source,
		config:      cfg,
		periodDays:  periodDays,
		log:         logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
	}

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	// Generation can legitimately take a while across backend fallbacks.
	s.router.Use(middleware.Timeout(120 * time.Second))

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// setupRoutes configures routes for the server.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/analysis", func(r chi.Router) {
		r.Get("/", s.handleGetAnalysis)
		r.Get("/history", s.handleHistory)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Post("/", s.handleSaveAnalysis)
			r.Post("/generate", s.handleGenerate)
		})
	})
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requireToken enforces the configured bearer token on write endpoints.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIToken == "" {
			s.respondJSON(w, http.StatusForbidden, errorResponse{Error: "write endpoints are disabled: no API token configured"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.config.APIToken {
			s.respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid or missing bearer token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
