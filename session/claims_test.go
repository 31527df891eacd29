package session_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/matka-backoffice/session"
	"github.com/stretchr/testify/require"
)

func TestTokenClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": exp.Unix(),
	}).SignedString([]byte("any-secret"))
	require.NoError(t, err)

	claims, ok := session.TokenClaims(signed)
	require.True(t, ok)
	require.Equal(t, "admin", claims.Subject)
	require.True(t, exp.Equal(claims.ExpiresAt))

	_, ok = session.TokenClaims("opaque-token")
	require.False(t, ok)

	_, ok = session.TokenClaims("")
	require.False(t, ok)
}

func TestAdminUserDisplayName(t *testing.T) {
	require.Equal(t, "Main Admin", testAdmin.DisplayName())
	require.Equal(t, "ops", (&session.AdminUser{Username: "ops"}).DisplayName())
	var nilUser *session.AdminUser
	require.Equal(t, "", nilUser.DisplayName())
}
