package feed

import (
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// claims recovered from a platform session token.
// the token is verified server side. the client only reads the
// principal id and expiry out of it, unverified
type SessionToken struct {
	UserId    string
	UserName  string
	ExpiresAt time.Time
}

func ParseSessionTokenUnverified(token string) (*SessionToken, error) {
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims := parsed.Claims.(gojwt.MapClaims)

	sessionToken := &SessionToken{}

	if userId, ok := claims["user_id"]; ok {
		if userIdStr, ok := userId.(string); ok {
			sessionToken.UserId = userIdStr
		}
	}
	if userName, ok := claims["username"]; ok {
		if userNameStr, ok := userName.(string); ok {
			sessionToken.UserName = userNameStr
		}
	}
	if expirationTime, err := claims.GetExpirationTime(); err == nil && expirationTime != nil {
		sessionToken.ExpiresAt = expirationTime.Time
	}

	return sessionToken, nil
}
