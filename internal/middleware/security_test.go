package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nivostack/buildhub/internal/middleware"
)

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(middleware.SecurityHeaders())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	r.ServeHTTP(w, req)

	expected := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
		"Strict-Transport-Security": "max-age=63072000; includeSubDomains",
		"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
		"Cache-Control":             "no-store",
	}

	for header, want := range expected {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestSDKCacheHeaders_OverrideNoStore(t *testing.T) {
	r := gin.New()
	r.Use(middleware.SecurityHeaders())
	sdk := r.Group("/sdk", middleware.SDKCacheHeaders())
	sdk.GET("/builds/production", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/builds", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sdk/builds/production", http.NoBody))

	if got := w.Header().Get("Cache-Control"); got != "private, no-cache" {
		t.Errorf("sdk Cache-Control = %q", got)
	}
	if got := w.Header().Get("Vary"); got != middleware.APIKeyHeader {
		t.Errorf("sdk Vary = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("sdk responses lost hardening headers: X-Frame-Options = %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/builds", http.NoBody))
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("build Cache-Control = %q", got)
	}
}
