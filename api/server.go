/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a reverse proxy
  3. Logger:     zerolog request line carrying the request id
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /health               Liveness
  /api/profiles/*       Profiles, blocks, holidays, plan, calendar
  /api/presets/*        Built-in rotation skeletons
  /api/waves            Wave schedule
  /api/backup           Export / import
  /api/audit            Change history

SEE ALSO:
  - handlers.go: Handler implementations
  - logging/logging.go: RequestLogger
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/warp/permiplan/logging"
)

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", h.ListProfiles)
			r.Post("/", h.CreateProfile)
			r.Get("/active", h.GetActiveProfile)
			r.Put("/active", h.SetActiveProfile)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetProfile)
				r.Patch("/", h.UpdateProfile)
				r.Delete("/", h.DeleteProfile)

				r.Get("/plan", h.GetPlan)
				r.Get("/calendar.ics", h.GetCalendar)

				// Block routes
				r.Post("/blocks", h.AddBlock)
				r.Post("/blocks/cycle", h.InsertCycle)
				r.Patch("/blocks/{blockID}", h.UpdateBlock)
				r.Delete("/blocks/{blockID}", h.RemoveBlock)
				r.Put("/blocks/{blockID}/end", h.EditBlockEnd)

				// Holiday routes
				r.Post("/holidays", h.AddHoliday)
				r.Delete("/holidays/{holidayID}", h.RemoveHoliday)
			})
		})

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", h.ListPresets)
			r.Post("/load", h.LoadPreset)
		})

		r.Get("/waves", h.GetWaves)
		r.Get("/backup", h.ExportBackup)
		r.Post("/backup", h.ImportBackup)
		r.Get("/audit", h.GetAudit)
	})

	return r
}
