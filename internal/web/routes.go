package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kozaktomas/visagium/internal/metrics"
	"github.com/kozaktomas/visagium/internal/web/handlers"
	"github.com/kozaktomas/visagium/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	configHandler := handlers.NewConfigHandler(s.config, s.deps.Engine)
	identitiesHandler := handlers.NewIdentitiesHandler(s.deps.Engine)
	registrationsHandler := handlers.NewRegistrationsHandler(s.deps.Engine, s.deps.Extractor, s.registrations)
	recognizeHandler := handlers.NewRecognizeHandler(s.deps.Engine, s.deps.Extractor)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Ledger)
	eventsHandler := handlers.NewEventsHandler(s.deps.Stream)

	gatherer := s.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", metrics.Handler(gatherer))

	frameLimit := middleware.RateLimit(s.config.Web.FrameRate)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Web.APIToken))

		// Long-lived log stream, no request timeout
		r.Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(2 * time.Minute))

			r.Get("/config", configHandler.Get)

			r.Get("/identities", identitiesHandler.List)
			r.Delete("/identities/{id}", identitiesHandler.Delete)

			r.Get("/registrations", registrationsHandler.List)
			r.Post("/registrations", registrationsHandler.Create)
			r.Get("/registrations/{regId}", registrationsHandler.Get)
			r.Delete("/registrations/{regId}", registrationsHandler.Cancel)
			r.With(frameLimit).Post("/registrations/{regId}/frames", registrationsHandler.Capture)

			r.With(frameLimit).Post("/recognize", recognizeHandler.Recognize)
			r.With(frameLimit).Post("/identify", recognizeHandler.Identify)

			r.Get("/attendance", attendanceHandler.List)
		})
	})
}
