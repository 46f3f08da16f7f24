package router

import (
	"lotorder-engine/internal/handler"
	"lotorder-engine/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler           *handler.Handler
	OrderHandler      *handler.OrderHandler
	DealershipHandler *handler.DealershipHandler
	AdminHandler      *handler.AdminHandler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Unified monitoring endpoint
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if cfg.OrderHandler != nil {
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", cfg.OrderHandler.SubmitOrder)
				r.Get("/{job_id}", cfg.OrderHandler.GetJobStatus)
			})
		}

		if cfg.DealershipHandler != nil {
			r.Route("/dealerships", func(r chi.Router) {
				r.Get("/", cfg.DealershipHandler.List)
				r.Get("/{dealership_id}", cfg.DealershipHandler.Get)
			})
		}

		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Get("/health", cfg.AdminHandler.GetHealth)
			})
		}
	})

	return r
}
