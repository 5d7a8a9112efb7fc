/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack, and the route tree.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the driver form / console

AUTH:
  Admin routes sit behind a shared-secret token, accepted either as the
  "token" query parameter or the X-Auth header. Driver submission is
  public; the form is meant to be link-shared with the fleet.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"crypto/subtle"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Auth", "X-Admin-User"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.Ping)

		// Driver-facing routes
		r.Route("/public", func(r chi.Router) {
			r.Post("/submit", h.SubmitLog)
		})

		// Admin console routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdminToken)

			r.Route("/logs", func(r chi.Router) {
				r.Get("/", h.ListLogs)
				r.Get("/{id}", h.GetLog)
				r.Put("/{id}", h.EditLog)
				r.Post("/{id}/approve", h.ApproveLog)
			})

			r.Get("/period/current", h.CurrentPeriod)
			r.Post("/assign-period", h.AssignPeriod)
			r.Post("/close-period", h.ClosePeriod)
			r.Post("/mark-paid", h.MarkPaid)

			r.Get("/payroll", h.Payroll)
			r.Get("/payroll/daily", h.DailyPayroll)
			r.Get("/export.csv", h.ExportPeriodCSV)

			r.Route("/drivers", func(r chi.Router) {
				r.Get("/", h.ListDrivers)
				r.Post("/", h.CreateDriver)
				r.Put("/{id}/rates", h.UpdateDriverRates)
			})
			r.Get("/trucks", h.ListTrucks)

			r.Post("/scenarios/load", h.LoadScenario)
		})
	})

	// Serve the static driver form / admin console when present.
	staticDir := "./public"
	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
			if _, err := os.Stat(filepath.Join(staticDir, req.URL.Path)); os.IsNotExist(err) {
				http.ServeFile(w, req, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, req)
		})
	}

	return r
}

// requireAdminToken guards admin routes with the shared secret.
func (h *Handler) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("X-Auth")
		}
		if h.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.AdminToken)) != 1 {
			writeError(w, http.StatusForbidden, "Unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
