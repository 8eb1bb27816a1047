package api

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims the client reads out of its own access token.
// The signature is NOT verified here; verification belongs to the backend.
// The client only needs the role and expiry to decide whether to bother
// sending a request or send the user straight to login.
type TokenClaims struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// PeekToken decodes the stored access token without verifying it.
func PeekToken(token string) (*TokenClaims, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	out := &TokenClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.UserID = sub
	}
	if id, ok := claims["userId"].(string); ok && out.UserID == "" {
		out.UserID = id
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// TokenExpired reports whether the token is missing, unreadable, or past its
// expiry at the given instant. Tokens without an exp claim are treated as
// live; the backend has the final say anyway.
func TokenExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	claims, err := PeekToken(token)
	if err != nil {
		return true
	}
	if claims.ExpiresAt.IsZero() {
		return false
	}
	return now.After(claims.ExpiresAt)
}
