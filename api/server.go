/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests, origins from config

ROUTE GROUPS:
  /api/users/*          Users, their balances, journal and notifications
  /api/leave-types/*    Leave type registry
  /api/applications/*   Leave applications and status transitions
  /api/admin/*          HR corrections, allocation schedule, term rates

SECURITY NOTE:
  No authentication middleware. Actor ids are taken from request bodies.

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

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultOrigins
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}/employment-term", h.ChangeEmploymentTerm)
			r.Post("/{id}/comp-off", h.CreditCompOff)
			r.Get("/{id}/balances", h.GetBalances)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Get("/{id}/notifications", h.GetNotifications)
		})

		r.Route("/leave-types", func(r chi.Router) {
			r.Get("/", h.ListLeaveTypes)
			r.Post("/", h.CreateLeaveType)
		})

		r.Route("/applications", func(r chi.Router) {
			r.Get("/", h.ListApplications)
			r.Post("/", h.SubmitApplication)
			r.Get("/{id}", h.GetApplication)
			r.Post("/{id}/approve", h.ApproveApplication)
			r.Post("/{id}/reject", h.RejectApplication)
			r.Post("/{id}/withdraw", h.WithdrawApplication)
			r.Post("/{id}/cancel", h.CancelApplication)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Put("/balances", h.SetAllocation)
			r.Get("/allocation-settings", h.GetAllocationSettings)
			r.Put("/allocation-settings", h.UpdateAllocationSettings)
			r.Post("/allocation/run", h.RunAllocation)
			r.Get("/allocation/runs", h.ListAllocationRuns)
			r.Get("/term-rates", h.ListTermRates)
			r.Put("/term-rates/{term}", h.SetTermRate)
			r.Get("/email-queue", h.ListPendingEmails)
		})
	})

	return r
}
