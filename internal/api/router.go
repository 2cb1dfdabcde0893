package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/reportwatch/internal/api/alerts"
	analyticsapi "github.com/good-yellow-bee/reportwatch/internal/api/analytics"
	"github.com/good-yellow-bee/reportwatch/internal/api/auth"
	"github.com/good-yellow-bee/reportwatch/internal/api/middleware"
	powerbiapi "github.com/good-yellow-bee/reportwatch/internal/api/powerbi"
	prefsapi "github.com/good-yellow-bee/reportwatch/internal/api/preferences"
	"github.com/good-yellow-bee/reportwatch/internal/api/respond"
	"github.com/good-yellow-bee/reportwatch/internal/api/users"
	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// setupRouter creates the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()
	d := s.deps

	jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)
	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)
	userLimiter := middleware.NewRateLimiter(s.config.RateLimitPerUser)
	requireAuth := middleware.JWTOrSessionAuth(jwtService, d.Sessions, d.Storage.Users())

	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			h := auth.NewHandler(d.Auth, jwtService, s.tokens)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Post("/login", h.Login)
				r.Post("/refresh", h.Refresh)
			})
			r.Post("/logout", h.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RateLimitByUser(userLimiter))

			alertHandler := alerts.NewHandler(d.Storage, d.Catalog, d.Runner, d.Events)
			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", alertHandler.List)
				r.Get("/{id}", alertHandler.GetByID)
				r.Get("/{id}/history", alertHandler.History)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(models.PermissionManageAlerts))
					r.Post("/", alertHandler.Create)
					r.Post("/validate", alertHandler.Validate)
					r.Put("/{id}", alertHandler.Update)
					r.Delete("/{id}", alertHandler.Delete)
					r.Post("/{id}/toggle", alertHandler.Toggle)
					r.Post("/{id}/run", alertHandler.Run)
				})
			})
			r.Get("/history", alertHandler.HistoryList)

			if d.Analytics != nil {
				r.Get("/analytics/summary", analyticsapi.NewHandler(d.Analytics).Summary)
			}

			r.Route("/users", func(r chi.Router) {
				h := users.NewHandler(d.Accounts)
				r.Get("/me", h.Me)
				r.Put("/me/password", h.ChangePassword)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(models.PermissionManageUsers))
					r.Get("/", h.List)
					r.Post("/", h.Create)
					r.Put("/{id}", h.Update)
					r.Delete("/{id}", h.Delete)
					r.Post("/{id}/toggle", h.Toggle)
				})
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdminOrSelf)
					r.Get("/{id}", h.GetByID)
					r.Put("/{id}/subscriptions", h.Subscriptions)
				})
			})

			r.Route("/powerbi", func(r chi.Router) {
				h := powerbiapi.NewHandler(d.Catalog, d.Tester)
				r.Use(middleware.RequirePermission(models.PermissionViewReports))
				r.Get("/workspaces", h.ListWorkspaces)
				r.Get("/workspaces/{id}", h.GetWorkspace)
				r.Get("/reports", h.ListReports)
				r.Get("/reports/{id}", h.GetReport)
				r.Get("/datasets/{id}", h.GetDataset)
				r.Get("/datasources", h.ListDataSources)
				r.With(middleware.RequirePermission(models.PermissionMoveReports)).
					Post("/reports/{id}/move", h.MoveReport)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(models.PermissionManageCatalog))
					if d.Tester != nil {
						r.Post("/datasources/{id}/test", h.TestDataSource)
					}
					r.Post("/datasources/{id}/migrate", h.MigrateDataSource)
				})
			})

			r.Route("/preferences", func(r chi.Router) {
				h := prefsapi.NewHandler(d.Preferences)
				r.Get("/onboarding", h.GetOnboarding)
				r.Post("/onboarding", h.SetOnboarding)
				r.Get("/settings", h.GetSettings)
				r.Get("/catalog/tables", h.ListTables)

				r.With(middleware.RequireAdmin).Put("/settings", h.UpdateSettings)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Get("/clients", h.ListClients)
					r.Post("/clients", h.CreateClient)
					r.Delete("/clients/{id}", h.DeleteClient)
				})
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequirePermission(models.PermissionManageCatalog))
					r.Put("/catalog/tables/{name}", h.PutTable)
					r.Delete("/catalog/tables/{name}", h.DeleteTable)
				})
			})
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respond.Fail(w, respond.NotFound("no such endpoint"))
		})
	})

	r.Get("/health", s.healthHandler.Health)
	r.Get("/health/live", s.healthHandler.Live)
	r.Get("/health/ready", s.healthHandler.Ready)

	if d.Web != nil {
		r.Mount("/", d.Web)
	}

	return r
}
