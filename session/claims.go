package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of token claims the console displays
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// TokenClaims decodes a JWT payload without verifying it. Verification is the backend's job;
// the console only uses this to show who is logged in and until when. Opaque tokens return ok=false.
func TokenClaims(token string) (Claims, bool) {
	if token == "" {
		return Claims{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Claims{}, false
	}
	var c Claims
	if sub, err := claims.GetSubject(); err == nil {
		c.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, true
}
