package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

func withUser(r *http.Request, u *models.User) *http.Request {
	if u == nil {
		return r
	}
	return r.WithContext(WithUser(r.Context(), u))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		user     *models.User
		allowed  []models.Role
		wantCode int
	}{
		{"exact match", &models.User{Role: models.RoleOperator}, []models.Role{models.RoleOperator}, http.StatusOK},
		{"admin bypass", &models.User{Role: models.RoleAdmin}, []models.Role{models.RoleViewer}, http.StatusOK},
		{"viewer denied", &models.User{Role: models.RoleViewer}, []models.Role{models.RoleOperator}, http.StatusForbidden},
		{"anonymous", nil, []models.Role{models.RoleViewer}, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), tc.user)
			RequireRole(tc.allowed...)(okHandler()).ServeHTTP(rec, req)
			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	for role, want := range map[models.Role]int{
		models.RoleAdmin:    http.StatusOK,
		models.RoleOperator: http.StatusForbidden,
		models.RoleViewer:   http.StatusForbidden,
	} {
		rec := httptest.NewRecorder()
		req := withUser(httptest.NewRequest(http.MethodGet, "/", nil), &models.User{Role: role})
		RequireAdmin(okHandler()).ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status = %d, want %d", role, rec.Code, want)
		}
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name     string
		user     *models.User
		wantCode int
	}{
		{"granted", &models.User{Role: models.RoleOperator, Permissions: []string{models.PermissionMoveReports}}, http.StatusOK},
		{"admin holds all", &models.User{Role: models.RoleAdmin}, http.StatusOK},
		{"missing", &models.User{Role: models.RoleOperator, Permissions: []string{models.PermissionManageAlerts}}, http.StatusForbidden},
		{"anonymous", nil, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := withUser(httptest.NewRequest(http.MethodPost, "/", nil), tc.user)
			RequirePermission(models.PermissionMoveReports)(okHandler()).ServeHTTP(rec, req)
			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
		})
	}
}

func TestRequireAdminOrSelf(t *testing.T) {
	tests := []struct {
		name     string
		user     *models.User
		target   string
		wantCode int
	}{
		{"admin other", &models.User{ID: "admin-1", Role: models.RoleAdmin}, "user-2", http.StatusOK},
		{"self", &models.User{ID: "user-1", Role: models.RoleViewer}, "user-1", http.StatusOK},
		{"other", &models.User{ID: "user-1", Role: models.RoleOperator}, "user-2", http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.With(RequireAdminOrSelf).Get("/users/{id}", okHandler().ServeHTTP)

			rec := httptest.NewRecorder()
			req := withUser(httptest.NewRequest(http.MethodGet, "/users/"+tc.target, nil), tc.user)
			r.ServeHTTP(rec, req)
			if rec.Code != tc.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantCode)
			}
		})
	}
}
