package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubCatalog struct{ reports int }

func (c stubCatalog) Counts() (int, int, int, int) { return 1, c.reports, 1, 1 }

func ready(h *Handler) (int, HealthResponse) {
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var resp HealthResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	return rec.Code, resp
}

func TestReady(t *testing.T) {
	h := NewHandler()
	h.RegisterChecker(NewClickHouseChecker(stubPinger{}))
	h.RegisterChecker(NewCatalogChecker(stubCatalog{reports: 3}))

	code, resp := ready(h)
	if code != http.StatusOK || resp.Status != "ready" {
		t.Errorf("ready = %d %+v", code, resp)
	}
	if resp.Checks["clickhouse"] != "ok" || resp.Checks["catalog"] != "ok" {
		t.Errorf("checks = %v", resp.Checks)
	}
}

func TestReady_Failing(t *testing.T) {
	tests := []struct {
		name    string
		checker Checker
	}{
		{"nats down", NewNATSChecker(stubPinger{err: errors.New("nats: no servers available")})},
		{"nats missing", NewNATSChecker(nil)},
		{"empty catalog", NewCatalogChecker(stubCatalog{})},
		{"no database", NewSQLiteChecker(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			h.RegisterChecker(tt.checker)
			code, resp := ready(h)
			if code != http.StatusServiceUnavailable || resp.Status != "not_ready" {
				t.Errorf("ready = %d %+v", code, resp)
			}
			if resp.Checks[tt.checker.Name()] == "ok" {
				t.Errorf("checks = %v", resp.Checks)
			}
		})
	}
}

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler().Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
