package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for bearer tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// UserChecker reports whether a user account still exists.
type UserChecker interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// TokenVerifier issues and verifies HS256 user tokens. The subject claim
// carries the user ID.
type TokenVerifier struct {
	secret []byte
	users  UserChecker
}

// NewTokenVerifier creates a verifier. When users is nil the subject is
// trusted without a database check.
func NewTokenVerifier(secret []byte, users UserChecker) *TokenVerifier {
	return &TokenVerifier{secret: secret, users: users}
}

// IssueToken signs a token for userID valid for ttl.
func (v *TokenVerifier) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// ValidateToken verifies the signature and expiry and returns the user ID.
func (v *TokenVerifier) ValidateToken(ctx context.Context, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	if v.users != nil {
		ok, err := v.users.UserExists(ctx, claims.Subject)
		if err != nil {
			return "", fmt.Errorf("checking user: %w", err)
		}
		if !ok {
			return "", ErrInvalidToken
		}
	}

	return claims.Subject, nil
}
