package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/aniquiz/aniquiz/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// Standard health endpoints
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	// Quiz API
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/round", s.quiz.BuildRound)
		r.Get("/media/{id}", s.quiz.MediaDetail)
		r.Get("/ratelimit", s.quiz.Ratelimit)
	})
}
