package middleware

import "github.com/gin-gonic/gin"

var securityHeaders = [...][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Strict-Transport-Security", "max-age=63072000; includeSubDomains"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
}

// SecurityHeaders sets hardening headers on every response. Build and audit
// responses are never cached.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, h := range securityHeaders {
			c.Header(h[0], h[1])
		}
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}

// SDKCacheHeaders lets SDK clients keep the active build payload but forces
// revalidation on every use, so a mode change is visible on the next request.
// The payload depends on the API key, which shared caches must key on.
func SDKCacheHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "private, no-cache")
		c.Header("Vary", APIKeyHeader)

		c.Next()
	}
}
