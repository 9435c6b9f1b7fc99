package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nivostack/buildhub/internal/domain"
	"github.com/nivostack/buildhub/internal/middleware"
)

func TestRequestID_PropagatesToContext(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	var fromCtx, fromGin, clientID string
	r := gin.New()
	r.Use(middleware.RequestID(log))
	r.GET("/test", func(c *gin.Context) {
		fromCtx = domain.RequestID(c.Request.Context())
		fromGin = c.GetString(middleware.RequestIDKey)
		clientID = c.GetString("client_request_id")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "client-supplied")
	r.ServeHTTP(w, req)

	header := w.Header().Get(middleware.RequestIDHeader)
	if _, err := uuid.Parse(header); err != nil {
		t.Fatalf("response request id %q is not a uuid", header)
	}
	if fromCtx != header || fromGin != header {
		t.Errorf("request id mismatch: header=%q ctx=%q gin=%q", header, fromCtx, fromGin)
	}
	if clientID != "client-supplied" {
		t.Errorf("client_request_id = %q", clientID)
	}
}
