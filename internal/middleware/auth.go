package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// authTimingFloor is the minimum response time for auth endpoints to prevent
// timing oracle attacks that could distinguish valid from invalid credentials.
const authTimingFloor = 50 * time.Millisecond

// APIKeyHeader carries a project's SDK key.
const APIKeyHeader = "X-API-Key"

// Context keys set by the auth middlewares.
const (
	UserIDKey    = "user_id"
	ProjectIDKey = "project_id"
	OwnerIDKey   = "owner_id"
)

// UserLookup resolves a bearer token to a user ID.
type UserLookup interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// ProjectLookup resolves a project API key to the project and its owner.
type ProjectLookup interface {
	GetProjectByAPIKey(ctx context.Context, apiKey string) (projectID, ownerID string, err error)
}

// truncateKey returns at most the first 4 characters of key followed by "...".
func truncateKey(key string) string {
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return key
}

// enforceTimingFloor sleeps if needed so the response takes at least authTimingFloor.
func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

func firstGuard(guards []*BruteForceGuard) *BruteForceGuard {
	if len(guards) > 0 {
		return guards[0]
	}
	return nil
}

// AuthMiddleware returns Gin middleware that authenticates users via Bearer token.
// If a BruteForceGuard is provided, failed attempts are tracked per token hash.
func AuthMiddleware(lookup UserLookup, log *logrus.Logger, guards ...*BruteForceGuard) gin.HandlerFunc {
	guard := firstGuard(guards)

	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		token := ExtractBearerToken(c)
		if token == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header")
			return
		}

		userID, err := lookup.ValidateToken(c.Request.Context(), token)
		if err != nil {
			logAuthFailure(log, c, token, "authentication failed: invalid token")

			if guard != nil {
				guard.RecordFailure(CredentialToken, token)
			}

			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		if guard != nil {
			guard.ResetKey(CredentialToken, token)
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// ProjectKeyMiddleware authenticates SDK requests by the X-API-Key header.
func ProjectKeyMiddleware(lookup ProjectLookup, log *logrus.Logger, guards ...*BruteForceGuard) gin.HandlerFunc {
	guard := firstGuard(guards)

	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		apiKey := strings.TrimSpace(c.GetHeader(APIKeyHeader))
		if apiKey == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing api key")
			return
		}

		projectID, ownerID, err := lookup.GetProjectByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			logAuthFailure(log, c, apiKey, "authentication failed: invalid api key")

			if guard != nil {
				guard.RecordFailure(CredentialAPIKey, apiKey)
			}

			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid api key")
			return
		}

		if guard != nil {
			guard.ResetKey(CredentialAPIKey, apiKey)
		}

		c.Set(ProjectIDKey, projectID)
		c.Set(OwnerIDKey, ownerID)
		c.Next()
	}
}

// ExtractBearerToken extracts the token from the Authorization header.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// logAuthFailure logs a failed authentication attempt.
func logAuthFailure(log *logrus.Logger, c *gin.Context, secret, msg string) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"request_id": c.GetString(RequestIDKey),
		"key_prefix": truncateKey(secret),
	}).Warn(msg)
}
