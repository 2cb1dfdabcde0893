package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"n": 1})

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"data":{"n":1}}` {
		t.Errorf("body = %s", body)
	}
}

func TestFail_WithFields(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, Validation("validation failed", map[string]string{"name": "name is required"}))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	var resp struct {
		Error Error `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != CodeValidationFailed {
		t.Errorf("code = %q", resp.Error.Code)
	}
	if resp.Error.Fields["name"] != "name is required" {
		t.Errorf("fields = %v", resp.Error.Fields)
	}
}

func TestInternal_HidesError(t *testing.T) {
	rec := httptest.NewRecorder()
	Internal(rec, "list alerts", errors.New("database is locked"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "locked") {
		t.Errorf("internal error leaked: %s", rec.Body.String())
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	if err := Decode(httptest.NewRecorder(), req, &v); err != nil || v.Name != "x" {
		t.Errorf("Decode = %v, name %q", err, v.Name)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := Decode(httptest.NewRecorder(), req, &v); err == nil {
		t.Error("empty body should fail")
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"", 1, DefaultPerPage},
		{"page=3&per_page=10", 3, 10},
		{"page=0&per_page=-1", 1, DefaultPerPage},
		{"page=x&per_page=5000", 1, MaxPerPage},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		page, perPage := ParsePage(req)
		if page != tt.wantPage || perPage != tt.wantPerPage {
			t.Errorf("ParsePage(%q) = %d,%d want %d,%d", tt.query, page, perPage, tt.wantPage, tt.wantPerPage)
		}
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{}, 101, 2, 50)
	if p.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", p.TotalPages)
	}
	if p := NewPage([]int{}, 0, 1, 50); p.TotalPages != 0 {
		t.Errorf("TotalPages = %d, want 0", p.TotalPages)
	}
}
