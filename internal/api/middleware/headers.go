package middleware

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/good-yellow-bee/reportwatch/internal/api/respond"
)

const cspNonceKey contextKey = "csp_nonce"

// GetCSPNonce returns the per-request CSP nonce.
func GetCSPNonce(ctx context.Context) string {
	s, _ := ctx.Value(cspNonceKey).(string)
	return s
}

func generateCSPNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}

func buildCSP(scriptSrc ...string) string {
	return "default-src 'self'; " +
		"script-src " + strings.Join(scriptSrc, " ") + "; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:; " +
		"connect-src 'self'; " +
		"object-src 'none'; " +
		"base-uri 'self'; " +
		"frame-ancestors 'self'"
}

// SecurityHeaders sets the security headers and a per-request script nonce.
// Pages may be framed by the same origin only, which the analytics charts use.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scriptSrc := []string{"'self'"}
		nonce, err := generateCSPNonce()
		if err != nil {
			log.Printf("csp nonce error: %v", err)
			scriptSrc = append(scriptSrc, "'unsafe-inline'")
		} else {
			r = r.WithContext(context.WithValue(r.Context(), cspNonceKey, nonce))
			scriptSrc = append(scriptSrc, "'nonce-"+nonce+"'")
		}

		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "SAMEORIGIN")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", buildCSP(scriptSrc...))
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		if IsRequestSecure(r) {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// AllowInlineScripts relaxes the CSP for generated chart pages, which load
// ECharts from cdnHost and initialize it with inline scripts.
func AllowInlineScripts(cdnHost string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", buildCSP("'self'", "'unsafe-inline'", cdnHost))
			next.ServeHTTP(w, r)
		})
	}
}

// IsRequestSecure reports whether the request arrived over TLS, directly or
// through a proxy that sets X-Forwarded-Proto.
func IsRequestSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Recoverer turns panics into a logged 500.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC recovered: %v\nRequest: %s %s\nStack:\n%s",
					err, r.Method, r.URL.Path, debug.Stack())
				respond.Fail(w, respond.ErrInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
