package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/accounts"
	"github.com/good-yellow-bee/reportwatch/internal/alerting"
	"github.com/good-yellow-bee/reportwatch/internal/analytics"
	"github.com/good-yellow-bee/reportwatch/internal/api/auth"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/powerbi"
	"github.com/good-yellow-bee/reportwatch/internal/preferences"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
	"github.com/good-yellow-bee/reportwatch/internal/web/handlers"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
)

const testPassword = "TestPassword123!"

var tokenRe = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

type testEnv struct {
	ts       *httptest.Server
	store    *storage.SQLiteStorage
	accounts *accounts.Service
	prefs    *preferences.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "web.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate storage: %v", err)
	}

	catalog, err := powerbi.NewCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	prefs, err := preferences.NewService(store.KV())
	if err != nil {
		t.Fatalf("preferences: %v", err)
	}
	sessions := session.NewStore(time.Hour)
	acct := accounts.NewService(store, sessions)
	runner := alerting.NewRunner(alerting.RunnerDeps{
		Alerts:  store.Alerts(),
		History: store.AlertHistory(),
		Client:  powerbi.NewMockClient(catalog),
		Catalog: catalog,
	}, alerting.RunnerConfig{})

	srv, err := NewServer(Config{CSRFKey: []byte("0123456789abcdef0123456789abcdef")}, handlers.Deps{
		Storage:     store,
		Sessions:    sessions,
		Auth:        auth.NewAuthenticator(store.Users(), auth.NewLockoutTracker(5, time.Minute)),
		Accounts:    acct,
		Catalog:     catalog,
		Runner:      runner,
		Preferences: prefs,
		Analytics:   analytics.NewService(store.Alerts(), analytics.Source{Name: "sqlite", Stats: store.AlertHistory()}),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, store: store, accounts: acct, prefs: prefs}
}

func (env *testEnv) createUser(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	u, err := env.accounts.Create(context.Background(), accounts.CreateInput{
		Username:        username,
		Email:           username + "@test.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
		Role:            string(role),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (env *testEnv) onboard(t *testing.T) {
	t.Helper()
	if err := env.prefs.SetOnboarded(context.Background(), true); err != nil {
		t.Fatalf("SetOnboarded: %v", err)
	}
}

// browser is an HTTP client with cookies that does not follow redirects.
type browser struct {
	t      *testing.T
	env    *testEnv
	client *http.Client
}

func (env *testEnv) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &browser{t: t, env: env, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.env.ts.URL + path)
	if err != nil {
		b.t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

// post submits form to path with a CSRF token taken from the page at from.
func (b *browser) post(from, path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	_, page := b.get(from)
	m := tokenRe.FindStringSubmatch(page)
	if m == nil {
		b.t.Fatalf("no csrf token on %s", from)
	}
	form.Set("csrf_token", m[1])

	resp, err := b.client.PostForm(b.env.ts.URL+path, form)
	if err != nil {
		b.t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (b *browser) login(username string) {
	b.t.Helper()
	resp, body := b.post("/login", "/login", url.Values{"username": {username}, "password": {testPassword}})
	if resp.StatusCode != http.StatusFound {
		b.t.Fatalf("login status = %d: %s", resp.StatusCode, body)
	}
}

func TestLoginAndOnboarding(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin", models.RoleAdmin)
	b := env.browser(t)

	resp, _ := b.get("/alerts")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/login" {
		t.Fatalf("anonymous /alerts: %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, body := b.get("/login")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Sign in to ReportWatch") {
		t.Fatalf("login page: %d", resp.StatusCode)
	}

	resp, body = b.post("/login", "/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "Invalid credentials") {
		t.Errorf("wrong password: %d", resp.StatusCode)
	}

	b.login("admin")

	for _, path := range []string{"/alerts", "/monitor", "/history", "/analytics"} {
		resp, _ = b.get(path)
		if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/onboarding" {
			t.Errorf("%s before onboarding: %d %q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}

	resp, body = b.get("/onboarding")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Welcome to ReportWatch") {
		t.Fatalf("onboarding page: %d", resp.StatusCode)
	}
	resp, _ = b.post("/onboarding", "/onboarding", url.Values{})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("complete onboarding: %d", resp.StatusCode)
	}

	resp, body = b.get("/alerts")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/alerts after onboarding: %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Welcome to ReportWatch") {
		t.Error("flash from onboarding missing")
	}

	resp, _ = b.post("/alerts", "/logout", url.Values{})
	if resp.StatusCode != http.StatusFound {
		t.Errorf("logout: %d", resp.StatusCode)
	}
	resp, _ = b.get("/alerts")
	if resp.StatusCode != http.StatusFound {
		t.Errorf("after logout: %d", resp.StatusCode)
	}
}

func TestCSRFRequired(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin", models.RoleAdmin)
	b := env.browser(t)

	b.get("/login")
	resp, err := b.client.PostForm(env.ts.URL+"/login", url.Values{"username": {"admin"}, "password": {testPassword}})
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestNotFoundPage(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	resp, body := b.get("/no/such/page")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if !strings.Contains(body, "Page not found") || !strings.Contains(body, "/no/such/page") {
		t.Errorf("body = %s", body)
	}
}

func wizardForm(action string) url.Values {
	return url.Values{
		"step":             {"review"},
		"action":           {action},
		"name":             {"Revenue watch"},
		"reportId":         {"rpt-sales-overview"},
		"ds.0.id":          {"ds-sales"},
		"ds.0.kpi":         {"Revenue"},
		"ds.0.dims":        {"Region"},
		"condition":        {"value > 0"},
		"frequency":        {"1h"},
		"active":           {"true"},
		"notify.email":     {"on"},
		"recipients.email": {"ops@example.com"},
	}
}

func TestAlertWizard(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin", models.RoleAdmin)
	env.onboard(t)
	b := env.browser(t)
	b.login("admin")

	t.Run("step errors", func(t *testing.T) {
		resp, body := b.post("/alerts/new", "/alerts/new", url.Values{"step": {"details"}, "action": {"next"}})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
		if !strings.Contains(body, "name is required") || !strings.Contains(body, "report is required") {
			t.Errorf("missing field errors")
		}
		if strings.Contains(body, "enable at least one notification channel") {
			t.Error("details step reported notification errors")
		}
	})

	t.Run("next shows datasets", func(t *testing.T) {
		resp, body := b.post("/alerts/new", "/alerts/new", url.Values{
			"step": {"details"}, "action": {"next"}, "name": {"Revenue watch"}, "reportId": {"rpt-sales-overview"},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if !strings.Contains(body, `name="step" value="datasets"`) || !strings.Contains(body, `name="ds.0.kpi"`) {
			t.Error("datasets step not rendered")
		}
	})

	t.Run("submit without channels", func(t *testing.T) {
		form := wizardForm("submit")
		form.Del("notify.email")
		resp, body := b.post("/alerts/new", "/alerts/new", form)
		if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "enable at least one notification channel") {
			t.Errorf("status = %d", resp.StatusCode)
		}
		if alerts, _ := env.store.Alerts().List(context.Background()); len(alerts) != 0 {
			t.Errorf("alert stored despite errors: %d", len(alerts))
		}
	})

	t.Run("submit", func(t *testing.T) {
		resp, _ := b.post("/alerts/new", "/alerts/new", wizardForm("submit"))
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", resp.StatusCode)
		}
		alerts, err := env.store.Alerts().List(context.Background())
		if err != nil || len(alerts) != 1 {
			t.Fatalf("alerts = %d, err %v", len(alerts), err)
		}
		a := alerts[0]
		if resp.Header.Get("Location") != "/alerts/"+a.ID {
			t.Errorf("Location = %q", resp.Header.Get("Location"))
		}
		if a.Status != models.AlertStatusPending || a.CreatedBy != "admin" {
			t.Errorf("alert = %+v", a)
		}

		resp, body := b.get("/alerts/" + a.ID)
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Revenue watch") {
			t.Errorf("detail page: %d", resp.StatusCode)
		}

		resp, _ = b.post("/alerts/"+a.ID, "/alerts/"+a.ID+"/run", url.Values{})
		if resp.StatusCode != http.StatusSeeOther {
			t.Errorf("run: %d", resp.StatusCode)
		}
		if got, _ := env.store.Alerts().GetByID(context.Background(), a.ID); got.RunCount != 1 {
			t.Errorf("RunCount = %d, want 1", got.RunCount)
		}

		resp, _ = b.post("/alerts", "/alerts/"+a.ID+"/toggle", url.Values{})
		if resp.StatusCode != http.StatusSeeOther {
			t.Errorf("toggle: %d", resp.StatusCode)
		}
		if got, _ := env.store.Alerts().GetByID(context.Background(), a.ID); got.Active || got.Status != models.AlertStatusInactive {
			t.Errorf("after toggle: active=%t status=%s", got.Active, got.Status)
		}

		resp, _ = b.post("/alerts", "/alerts/"+a.ID+"/toggle", url.Values{})
		if resp.StatusCode != http.StatusSeeOther {
			t.Errorf("resume: %d", resp.StatusCode)
		}
		got, _ := env.store.Alerts().GetByID(context.Background(), a.ID)
		if !got.Active || got.Status != models.AlertStatusPending {
			t.Errorf("after resume: active=%t status=%s", got.Active, got.Status)
		}
		if got.RunCount != 1 {
			t.Errorf("RunCount = %d after toggles, want 1", got.RunCount)
		}
	})
}

func TestPermissions(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin", models.RoleAdmin)
	env.createUser(t, "viewer", models.RoleViewer)
	env.onboard(t)
	b := env.browser(t)
	b.login("viewer")

	tests := []struct {
		path string
		want int
	}{
		{"/alerts", http.StatusOK},
		{"/alerts/new", http.StatusForbidden},
		{"/reports", http.StatusOK},
		{"/catalog", http.StatusOK},
		{"/settings", http.StatusOK},
		{"/users", http.StatusForbidden},
		{"/admin", http.StatusForbidden},
	}
	for _, tt := range tests {
		if resp, _ := b.get(tt.path); resp.StatusCode != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestUserToggle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin", models.RoleAdmin)
	bob := env.createUser(t, "bob", models.RoleViewer)
	carol := env.createUser(t, "carol", models.RoleViewer)
	b := env.browser(t)
	b.login("admin")

	resp, _ := b.post("/users", "/users/"+bob.ID+"/toggle", url.Values{})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("toggle: %d", resp.StatusCode)
	}

	ctx := context.Background()
	for _, u := range []struct {
		id   string
		want bool
	}{{admin.ID, true}, {bob.ID, false}, {carol.ID, true}} {
		got, _ := env.store.Users().GetByID(ctx, u.id)
		if got.Active != u.want {
			t.Errorf("%s active = %t, want %t", got.Username, got.Active, u.want)
		}
	}

	resp, _ = b.post("/users", "/users/"+admin.ID+"/toggle", url.Values{})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("self toggle: %d", resp.StatusCode)
	}
	if got, _ := env.store.Users().GetByID(ctx, admin.ID); !got.Active {
		t.Error("admin deactivated themselves")
	}
}

func TestAnalyticsCharts(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin", models.RoleAdmin)
	env.onboard(t)
	b := env.browser(t)
	b.login("admin")

	for _, path := range []string{"/analytics/charts/runs", "/analytics/charts/status"} {
		resp, body := b.get(path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s = %d", path, resp.StatusCode)
			continue
		}
		if !strings.Contains(body, "echarts") {
			t.Errorf("%s does not load echarts", path)
		}
		if csp := resp.Header.Get("Content-Security-Policy"); !strings.Contains(csp, handlers.ChartCDN) {
			t.Errorf("%s CSP = %q", path, csp)
		}
	}

	resp, body := b.get("/analytics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "/analytics/charts/runs") {
		t.Errorf("analytics page: %d", resp.StatusCode)
	}
}
