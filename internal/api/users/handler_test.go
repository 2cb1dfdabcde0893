package users

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/reportwatch/internal/accounts"
	"github.com/good-yellow-bee/reportwatch/internal/api/middleware"
	"github.com/good-yellow-bee/reportwatch/internal/api/respond"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
)

const testPassword = "MyP@ssw0rd123!"

type noSessions struct{}

func (noSessions) DeleteForUser(string) int { return 0 }

type testEnv struct {
	svc    *accounts.Service
	router chi.Router
	admin  *models.User
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "users.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := accounts.NewService(store, noSessions{})
	env := &testEnv{svc: svc}
	env.admin = env.create(t, "root", models.RoleAdmin)

	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), env.admin)))
		})
	})
	r.Get("/users", h.List)
	r.Post("/users", h.Create)
	r.Get("/users/me", h.Me)
	r.Put("/users/me/password", h.ChangePassword)
	r.Get("/users/{id}", h.GetByID)
	r.Put("/users/{id}", h.Update)
	r.Delete("/users/{id}", h.Delete)
	r.Post("/users/{id}/toggle", h.Toggle)
	r.Put("/users/{id}/subscriptions", h.Subscriptions)
	env.router = r
	return env
}

func (env *testEnv) create(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	u, err := env.svc.Create(context.Background(), accounts.CreateInput{
		Username:        username,
		Email:           username + "@example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
		Role:            string(role),
	})
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return u
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data  T              `json:"data"`
		Error *respond.Error `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) respond.Error {
	t.Helper()
	var resp struct {
		Error respond.Error `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Error
}

func TestCreateAndList(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/users", map[string]any{
		"username":         "bob",
		"email":            "bob@example.com",
		"password":         testPassword,
		"confirm_password": testPassword,
		"role":             "viewer",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[models.User](t, rec)
	if created.ID == "" || created.Role != models.RoleViewer {
		t.Errorf("created = %+v", created)
	}

	rec = env.do(t, http.MethodGet, "/users?role=viewer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decode[[]models.User](t, rec)
	if len(list) != 1 || list[0].Username != "bob" {
		t.Errorf("viewers = %+v", list)
	}

	if rec := env.do(t, http.MethodGet, "/users?role=superuser", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad role status = %d, want 400", rec.Code)
	}
}

func TestCreate_Errors(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/users", map[string]any{
		"username":         "x",
		"email":            "nope",
		"password":         "short",
		"confirm_password": "short",
		"role":             "viewer",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	apiErr := decodeError(t, rec)
	if apiErr.Code != respond.CodeValidationFailed || apiErr.Fields["email"] == "" {
		t.Errorf("error = %+v", apiErr)
	}

	rec = env.do(t, http.MethodPost, "/users", map[string]any{
		"username":         "root",
		"email":            "other@example.com",
		"password":         testPassword,
		"confirm_password": testPassword,
		"role":             "viewer",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestToggle_OnlyTarget(t *testing.T) {
	env := setup(t)
	bob := env.create(t, "bob", models.RoleViewer)
	carol := env.create(t, "carol", models.RoleOperator)

	rec := env.do(t, http.MethodPost, "/users/"+bob.ID+"/toggle", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[models.User](t, rec); got.Active {
		t.Error("bob should be inactive")
	}

	other, _ := env.svc.Get(context.Background(), carol.ID)
	if !other.Active {
		t.Error("carol must not change")
	}
}

func TestToggle_Self(t *testing.T) {
	env := setup(t)
	rec := env.do(t, http.MethodPost, "/users/"+env.admin.ID+"/toggle", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestGetUpdateDelete(t *testing.T) {
	env := setup(t)
	bob := env.create(t, "bob", models.RoleViewer)

	if rec := env.do(t, http.MethodGet, "/users/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}

	rec := env.do(t, http.MethodPut, "/users/"+bob.ID, map[string]any{
		"name":  "Bob Builder",
		"email": "bob@example.com",
		"role":  "operator",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[models.User](t, rec)
	if updated.Name != "Bob Builder" || updated.Role != models.RoleOperator {
		t.Errorf("updated = %+v", updated)
	}

	rec = env.do(t, http.MethodPut, "/users/"+env.admin.ID, map[string]any{
		"email": "root@example.com",
		"role":  "viewer",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("demote last admin status = %d, want 409", rec.Code)
	}

	if rec := env.do(t, http.MethodDelete, "/users/"+bob.ID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/users/"+bob.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("after delete status = %d, want 404", rec.Code)
	}
}

func TestMeAndPassword(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/users/me", nil)
	if got := decode[models.User](t, rec); got.Username != "root" {
		t.Errorf("me = %+v", got)
	}

	rec = env.do(t, http.MethodPut, "/users/me/password", map[string]any{
		"current_password": "wrong-password",
		"new_password":     "An0ther#Password",
		"confirm_password": "An0ther#Password",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("wrong current password status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/users/me/password", map[string]any{
		"current_password": testPassword,
		"new_password":     "An0ther#Password",
		"confirm_password": "An0ther#Password",
	})
	if rec.Code != http.StatusNoContent {
		t.Errorf("change status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubscriptions_UnknownAlert(t *testing.T) {
	env := setup(t)
	rec := env.do(t, http.MethodPut, "/users/"+env.admin.ID+"/subscriptions", SubscriptionsRequest{AlertIDs: []string{"nope"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Fields["subscriptions"] == "" {
		t.Errorf("fields = %v", apiErr.Fields)
	}
}
