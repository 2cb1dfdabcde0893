package web

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"

	apimw "github.com/good-yellow-bee/reportwatch/internal/api/middleware"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/handlers"
	"github.com/good-yellow-bee/reportwatch/internal/web/middleware"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/components"
)

// plaintextAware marks plain HTTP requests so the CSRF origin checks do not
// expect an https Referer.
func plaintextAware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !apimw.IsRequestSecure(r) {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(w, r)
	})
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	log.Printf("csrf rejected %s %s: %v", r.Method, r.URL.Path, csrf.FailureReason(r))
	http.Error(w, "Forbidden - invalid CSRF token", http.StatusForbidden)
}

func (s *Server) Routes() chi.Router {
	h := s.handler
	r := chi.NewRouter()

	r.Use(plaintextAware)
	r.Use(csrf.Protect(
		s.csrfKey,
		csrf.Secure(s.secure),
		csrf.Path("/"),
		csrf.FieldName(components.CSRFFieldName),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
	))

	r.NotFound(h.NotFound)

	// Public routes
	r.Get("/login", h.ShowLogin)
	r.Post("/login", h.HandleLogin)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(s.sessions, s.deps.Storage.Users()))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/alerts", http.StatusFound)
		})
		r.Post("/logout", h.HandleLogout)
		r.Get("/onboarding", h.ShowOnboarding)
		r.Post("/onboarding", h.CompleteOnboarding)

		// Pages behind the onboarding gate
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOnboarding(s.deps.Preferences))

			r.Get("/alerts", h.ShowAlerts)
			r.Get("/alerts/{id}", h.ShowAlert)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(models.PermissionManageAlerts))
				r.Get("/alerts/new", h.NewAlert)
				r.Post("/alerts/new", h.SubmitNewAlert)
				r.Get("/alerts/{id}/edit", h.EditAlert)
				r.Post("/alerts/{id}/edit", h.SubmitEditAlert)
				r.Post("/alerts/{id}/toggle", h.ToggleAlert)
				r.Post("/alerts/{id}/run", h.RunAlert)
				r.Post("/alerts/{id}/delete", h.DeleteAlert)
			})

			r.Get("/monitor", h.ShowMonitor)
			r.Get("/history", h.ShowHistory)
			r.Get("/analytics", h.ShowAnalytics)
			r.With(apimw.AllowInlineScripts(handlers.ChartCDN)).Get("/analytics/charts/runs", h.RunsChart)
			r.With(apimw.AllowInlineScripts(handlers.ChartCDN)).Get("/analytics/charts/status", h.StatusChart)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(models.PermissionViewReports))
			r.Get("/reports", h.ShowReports)
			r.Get("/workspaces", h.ShowWorkspaces)
			r.Get("/catalog", h.ShowCatalog)
		})
		r.With(middleware.RequirePermission(models.PermissionMoveReports)).Post("/reports/{id}/move", h.MoveReport)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(models.PermissionManageCatalog))
			r.Post("/catalog/tables", h.PutTable)
			r.Post("/catalog/tables/{name}/delete", h.DeleteTable)
			r.Post("/catalog/datasources/{id}/migrate", h.MigrateDataSource)
		})

		r.Get("/settings", h.ShowSettings)
		r.Post("/settings/subscriptions", h.UpdateSubscriptions)
		r.Post("/settings/password", h.ChangePassword)

		// Admin only
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleAdmin))
			r.Post("/settings", h.UpdateSettings)
			r.Get("/users", h.ShowUsers)
			r.Post("/users", h.CreateUser)
			r.Post("/users/{id}/toggle", h.ToggleUser)
			r.Post("/users/{id}/delete", h.DeleteUser)
			r.Get("/admin", h.ShowAdmin)
			r.Post("/admin/clients", h.AddClient)
			r.Post("/admin/clients/{id}/delete", h.DeleteClient)
		})
	})

	return r
}
