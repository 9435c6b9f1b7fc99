package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nivostack/buildhub/internal/httputil"
	"github.com/nivostack/buildhub/internal/metrics"
	"github.com/nivostack/buildhub/internal/models"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternalError   = "internal_error"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeValidationError = "validation_error"
	ErrCodeConflict        = "conflict"
	ErrCodeInvalidState    = "invalid_state"
	ErrCodeQuotaExceeded   = "quota_exceeded"
	ErrCodeBodyTooLarge    = "request_too_large"
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// bindJSON decodes the request body into dst. Oversized bodies get 413 and
// malformed ones 400; it reports whether the handler may continue.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(c, http.StatusRequestEntityTooLarge, ErrCodeBodyTooLarge, "request body too large")

		return false
	}

	respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

	return false
}

// errorStatus maps a service error to its HTTP status and error code.
// ok is false for errors outside the taxonomy.
func errorStatus(err error) (status int, code string, ok bool) {
	switch {
	case errors.Is(err, models.ErrProjectNotFound), errors.Is(err, models.ErrBuildNotFound):
		return http.StatusNotFound, ErrCodeNotFound, true
	case errors.Is(err, models.ErrActiveBuild), errors.Is(err, models.ErrConflict):
		return http.StatusConflict, ErrCodeConflict, true
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict, ErrCodeInvalidState, true
	case errors.Is(err, models.ErrQuotaExceeded):
		return http.StatusForbidden, ErrCodeQuotaExceeded, true
	case errors.Is(err, models.ErrProjectMismatch),
		errors.Is(err, models.ErrInvalidMode),
		errors.Is(err, models.ErrInvalidFeatureType),
		errors.Is(err, models.ErrMissingFeatureType),
		errors.Is(err, models.ErrMissingProjectID):
		return http.StatusBadRequest, ErrCodeValidationError, true
	default:
		return http.StatusInternalServerError, ErrCodeInternalError, false
	}
}

// respondServiceError writes the mapped error, logging anything unexpected under op.
func respondServiceError(c *gin.Context, log *logrus.Logger, op string, err error) {
	status, code, ok := errorStatus(err)
	if !ok {
		log.WithError(err).WithField("request_id", c.GetString("request_id")).Error(op)
		respondError(c, status, code, "internal server error")

		return
	}

	respondError(c, status, code, err.Error())
}
