/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request, carried into every log line
  2. RealIP:        Client address from X-Forwarded-For / X-Real-IP
  3. RequestLogger: One zap line per request
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for the scanner and admin clients

ROUTE GROUPS:
  /api/attendance/*     Staff clock events
  /api/admin/*          Operator corrections
  /api/reports/*        Daily and range reports
  /api/holidays/*       Holiday calendar
  /api/staff/*          Staff directory
  /api/scenarios/*      Demo data (RouterOptions.Scenarios only)
  /healthz              Liveness and store ping

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

// RouterOptions selects optional surfaces.
type RouterOptions struct {
	AllowedOrigins []string
	Scenarios      bool
}

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/attendance", func(r chi.Router) {
			r.Post("/clock-in", h.ClockIn)
			r.Post("/clock-out", h.ClockOut)
			r.Get("/today", h.Today)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Put("/records", h.UpsertRecord)
			r.Delete("/records/{id}", h.DeleteRecord)
			r.Get("/stale-check-ins", h.StaleCheckIns)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/daily", h.DailyReport)
			r.Get("/range", h.RangeReport)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Route("/staff", func(r chi.Router) {
			r.Get("/", h.ListStaff)
			r.Post("/", h.CreateStaff)
			r.Put("/{email}", h.UpdateStaff)
			r.Delete("/{email}", h.DeleteStaff)
		})

		if opts.Scenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		}
	})

	return r
}
