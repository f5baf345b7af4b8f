package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kozaktomas/visagium/internal/config"
	"github.com/kozaktomas/visagium/internal/database"
	"github.com/kozaktomas/visagium/internal/engine"
	"github.com/kozaktomas/visagium/internal/extractor"
	"github.com/kozaktomas/visagium/internal/logger"
	"github.com/kozaktomas/visagium/internal/web/handlers"
	"github.com/kozaktomas/visagium/internal/web/middleware"
)

// Deps are the collaborators served by the HTTP API.
type Deps struct {
	Engine    *engine.Engine
	Extractor extractor.Extractor
	Ledger    database.LedgerReader
	Stream    *logger.Stream
	Gatherer  prometheus.Gatherer
}

// Server represents the web server
type Server struct {
	config        *config.Config
	deps          Deps
	router        *chi.Mux
	httpServer    *http.Server
	registrations *handlers.RegistrationManager
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:        cfg,
		deps:          deps,
		router:        r,
		registrations: handlers.NewRegistrationManager(),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
