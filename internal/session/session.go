// Package session is the authentication collaborator for the Swipess backend.
// It resolves a bearer token to a user ID (failing closed: no valid token
// means no user) and keeps a small per-user session record in Redis holding
// the active marketplace mode.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthenticated is returned when no valid user identity is present.
// Read paths translate it into an empty result; the swipe write path
// propagates it as a hard failure.
var ErrUnauthenticated = errors.New("session: unauthenticated")

// Claims carries the user identity inside a signed token.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenVerifier validates bearer tokens and extracts the user ID.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for HS256-signed tokens.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// UserID validates the token and returns the embedded user ID. Any parse,
// signature, or expiry failure collapses to ErrUnauthenticated: callers never
// learn why a token was rejected, they only learn there is no user.
func (v *TokenVerifier) UserID(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == uuid.Nil {
		return "", ErrUnauthenticated
	}

	return claims.UserID.String(), nil
}

// IssueToken signs a token for a user ID with the given lifetime. Used by
// tests and local tooling; production tokens come from the auth provider.
func (v *TokenVerifier) IssueToken(userID uuid.UUID, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}
