/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/tenants/*    Tenant-scoped resources (the tenant comes from the path)
  /api/admin/*      Batch operations (accrual, rollover, trial tick)
  /healthz          Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/tenants", h.CreateTenant)

		r.Route("/tenants/{tenant}", func(r chi.Router) {
			r.Get("/", h.GetTenant)

			r.Route("/leave-types", func(r chi.Router) {
				r.Get("/", h.ListLeaveTypes)
				r.Post("/", h.CreateLeaveType)
				r.Put("/{code}", h.UpdateLeaveType)
				r.Delete("/{code}", h.DeleteLeaveType)
			})

			r.Route("/employees", func(r chi.Router) {
				r.Get("/", h.ListEmployees)
				r.Post("/", h.CreateEmployee)
				r.Get("/{id}", h.GetEmployee)
				r.Delete("/{id}", h.DeactivateEmployee)
				r.Get("/{id}/balances", h.GetBalances)
				r.Post("/{id}/balances/adjust", h.AdjustBalance)
			})

			r.Route("/requests", func(r chi.Router) {
				r.Get("/", h.ListRequests)
				r.Post("/", h.SubmitRequest)
				r.Get("/{id}", h.GetRequest)
				r.Post("/{id}/decide", h.DecideRequest)
				r.Post("/{id}/cancel", h.CancelRequest)
			})

			r.Get("/conflicts", h.CheckConflicts)

			r.Route("/holidays", func(r chi.Router) {
				r.Post("/", h.AddHoliday)
				r.Delete("/{date}", h.RemoveHoliday)
			})

			r.Post("/trial/convert", h.ConvertTrial)
		})

		// Admin: batch runs, normally driven by the scheduler.
		r.Route("/admin", func(r chi.Router) {
			r.Post("/accrual/run", h.RunAccrual)
			r.Post("/rollover/run", h.RunRollover)
			r.Post("/trial/tick", h.RunTrialTick)
		})
	})

	return r
}
