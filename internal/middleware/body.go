package middleware

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONBody caps request bodies at maxBytes and requires POST, PATCH and PUT
// requests that carry a body to declare application/json, the only encoding
// the build API accepts. Declared lengths over the cap are refused up front;
// undeclared ones fail while decoding.
func JSONBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request
		if req.Body == nil || req.Body == http.NoBody || req.ContentLength == 0 {
			c.Next()
			return
		}

		if req.ContentLength > maxBytes {
			respondError(c, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return
		}

		switch req.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
			if mt, _, err := mime.ParseMediaType(req.Header.Get("Content-Type")); err != nil || mt != "application/json" {
				respondError(c, http.StatusUnsupportedMediaType, "unsupported_media_type", "request body must be application/json")
				return
			}
		}

		req.Body = http.MaxBytesReader(c.Writer, req.Body, maxBytes)
		c.Next()
	}
}
