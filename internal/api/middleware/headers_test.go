package middleware

import (
	"bytes"
	"crypto/tls"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestRecoverer_LogsPanicWithStackTrace(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	handler := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic message")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test-endpoint", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("body = %s", rec.Body)
	}
	out := buf.String()
	for _, want := range []string{"test panic message", "/test-endpoint", "goroutine"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

func TestRecoverer_NoPanic(t *testing.T) {
	handler := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/normal", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("status = %d, body = %q", rec.Code, rec.Body)
	}
}

func TestSecurityHeaders(t *testing.T) {
	var nonce string
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonce = GetCSPNonce(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "SAMEORIGIN",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	csp := rec.Header().Get("Content-Security-Policy")
	if nonce == "" || !strings.Contains(csp, "'nonce-"+nonce+"'") {
		t.Errorf("CSP %q should carry nonce %q", csp, nonce)
	}
	if strings.Contains(csp, "unsafe-inline' https") {
		t.Errorf("default CSP should not allow inline scripts: %q", csp)
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should only be set on secure requests")
	}
}

func TestAllowInlineScripts(t *testing.T) {
	handler := SecurityHeaders(AllowInlineScripts("https://cdn.jsdelivr.net")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charts", nil))

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "'unsafe-inline' https://cdn.jsdelivr.net") {
		t.Errorf("CSP = %q", csp)
	}
}

func TestIsRequestSecure(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	if IsRequestSecure(plain) {
		t.Error("plain request reported secure")
	}

	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "HTTPS")
	if !IsRequestSecure(proxied) {
		t.Error("forwarded https not detected")
	}

	direct := httptest.NewRequest(http.MethodGet, "/", nil)
	direct.TLS = &tls.ConnectionState{}
	if !IsRequestSecure(direct) {
		t.Error("TLS request not detected")
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	var id string
	handler := RequestLogger(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = GetRequestID(r.Context())
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if len(id) != 8 || rec.Header().Get("X-Request-ID") != id {
		t.Errorf("request id = %q, header = %q", id, rec.Header().Get("X-Request-ID"))
	}
	if buf.Len() != 0 {
		t.Errorf("successful request logged in quiet mode: %s", buf.String())
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if !strings.Contains(buf.String(), "GET /missing 404") {
		t.Errorf("log = %q", buf.String())
	}
}
