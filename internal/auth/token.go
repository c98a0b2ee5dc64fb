// internal/auth/token.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT indicates the credential is opaque rather than a JWT. Opaque
// credentials are still usable; they just cannot be inspected locally.
var ErrNotJWT = errors.New("credential is not a JWT")

// Claims is the subset of the server's token claims the client cares about.
type Claims struct {
	Subject string
	// ExpiresAt is zero when the token carries no exp claim ("never" expires).
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Inspect parses a JWT string without verifying its signature and returns the
// "sub" and "exp" fields. The server remains the only authority on validity;
// this only lets the client skip dialing with a credential it knows is stale.
func Inspect(tokenString string) (Claims, error) {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Claims{}, ErrNotJWT
		}
		return Claims{}, fmt.Errorf("jwt parse error: %w", err)
	}

	var out Claims
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}
