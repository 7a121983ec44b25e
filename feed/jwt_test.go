package feed

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/go-playground/assert/v2"
)

func TestParseSessionTokenUnverified(t *testing.T) {
	expiresAt := time.Now().Add(1 * time.Hour).Truncate(time.Second)
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"user_id":  "u1",
		"username": "Jane Doe",
		"exp":      expiresAt.Unix(),
	})
	tokenStr, err := token.SignedString([]byte("server-only-secret"))
	assert.Equal(t, err, nil)

	sessionToken, err := ParseSessionTokenUnverified(tokenStr)
	assert.Equal(t, err, nil)
	assert.Equal(t, sessionToken.UserId, "u1")
	assert.Equal(t, sessionToken.UserName, "Jane Doe")
	assert.Equal(t, sessionToken.ExpiresAt.Unix(), expiresAt.Unix())
}

func TestParseSessionTokenUnverifiedBadToken(t *testing.T) {
	_, err := ParseSessionTokenUnverified("not-a-jwt")
	assert.NotEqual(t, err, nil)
}
