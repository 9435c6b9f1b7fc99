package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nivostack/buildhub/internal/metrics"
)

// Credential is the kind of secret a failed authentication presented.
type Credential string

// Credential kinds.
const (
	CredentialToken  Credential = "token"   // user bearer token
	CredentialAPIKey Credential = "api_key" // project SDK key
)

const (
	bruteForceMaxAttempts = 5
	bruteForceRefill      = 3 * time.Minute // one attempt regained per interval
	bruteForceIdle        = bruteForceMaxAttempts * bruteForceRefill
	bruteForceSweep       = time.Minute
	bruteForceMaxRecords  = 10_000
)

// BruteForceGuard throttles failed authentications per credential. Each failure
// spends a token from the credential's bucket; a credential whose bucket is
// empty is locked out until a token refills. Tokens and API keys are tracked
// separately.
type BruteForceGuard struct {
	failures *limiterSet
	log      *logrus.Logger
}

// NewBruteForceGuard creates a guard whose idle records are swept until ctx is cancelled.
func NewBruteForceGuard(ctx context.Context, log *logrus.Logger) *BruteForceGuard {
	g := &BruteForceGuard{
		failures: newLimiterSet(rate.Every(bruteForceRefill), bruteForceMaxAttempts, bruteForceMaxRecords),
		log:      log,
	}
	go g.failures.sweepLoop(ctx, bruteForceSweep, bruteForceIdle)
	return g
}

func guardKey(kind Credential, secret string) string {
	h := sha256.Sum256([]byte(secret))
	return string(kind) + ":" + hex.EncodeToString(h[:])
}

// IsBlocked reports whether the credential is currently locked out.
func (g *BruteForceGuard) IsBlocked(kind Credential, secret string) bool {
	lim := g.failures.peek(guardKey(kind, secret))
	return lim != nil && lim.Tokens() < 1
}

// RecordFailure spends one attempt of the credential.
func (g *BruteForceGuard) RecordFailure(kind Credential, secret string) {
	metrics.AuthFailures.WithLabelValues(string(kind)).Inc()

	key := guardKey(kind, secret)
	lim := g.failures.get(key, time.Now())
	if lim == nil {
		g.log.WithField("credential", kind).Warn("auth failure table full, failure not tracked")
		return
	}

	if lim.Allow() && lim.Tokens() < 1 {
		g.log.WithFields(logrus.Fields{
			"credential": kind,
			"key_hash":   key[len(kind)+1:len(kind)+17] + "...",
		}).Warn("credential locked out due to repeated auth failures")
	}
}

// ResetKey clears the credential's failures after a successful authentication.
func (g *BruteForceGuard) ResetKey(kind Credential, secret string) {
	g.failures.forget(guardKey(kind, secret))
}

// BruteForceMiddleware rejects requests presenting a locked-out bearer token
// or project API key before any lookup is attempted.
func BruteForceMiddleware(guard *BruteForceGuard) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(bruteForceRefill.Seconds()))

	return func(c *gin.Context) {
		token := ExtractBearerToken(c)
		apiKey := strings.TrimSpace(c.GetHeader(APIKeyHeader))

		if (token != "" && guard.IsBlocked(CredentialToken, token)) ||
			(apiKey != "" && guard.IsBlocked(CredentialAPIKey, apiKey)) {
			c.Header("Retry-After", retryAfter)
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many failed authentication attempts")
			return
		}

		c.Next()
	}
}
