/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/settings             Global billing settings
  /api/coaches/*            Coach roster
  /api/students/*           Student roster, transfer and renewal logs
  /api/payroll/*            Period calculation, distribution, inspection

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Settings routes
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.GetSettings)
			r.Put("/", h.UpdateSettings)
		})

		// Coach routes
		r.Route("/coaches", func(r chi.Router) {
			r.Get("/", h.ListCoaches)
			r.Post("/", h.CreateCoach)
			r.Get("/{id}", h.GetCoach)
			r.Post("/{id}/archive", h.ArchiveCoach)
		})

		// Student routes
		r.Route("/students", func(r chi.Router) {
			r.Get("/", h.ListStudents)
			r.Post("/", h.CreateStudent)
			r.Get("/{id}", h.GetStudent)
			r.Post("/{id}/archive", h.ArchiveStudent)
			r.Get("/{id}/transfers", h.ListTransfers)
			r.Post("/{id}/transfers", h.CreateTransfer)
			r.Get("/{id}/renewals", h.ListRenewals)
			r.Post("/{id}/renewals", h.CreateRenewal)
		})

		// Payroll routes
		r.Route("/payroll", func(r chi.Router) {
			r.Get("/{period}", h.GetPeriod)
			r.Post("/{period}/calculate", h.CalculatePayroll)
			r.Post("/{period}/distribute", h.DistributePayroll)
		})
	})

	return r
}
