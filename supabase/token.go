package supabase

import (
	"fmt"
	"time"

	"github.com/eventive/eventive"
	"github.com/golang-jwt/jwt/v5"
)

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// parseAccessToken reads the claims of a GoTrue access token. The token is
// issued by the identity service and verified there; locally it is only
// decoded, never trusted for authorization decisions.
func parseAccessToken(token string) (accessClaims, error) {
	var claims accessClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return accessClaims{}, fmt.Errorf("token parse: %w", err)
	}
	return claims, nil
}

func tokenSubject(token string) (eventive.UserId, error) {
	claims, err := parseAccessToken(token)
	if err != nil {
		return "", err
	}
	return eventive.UserId(claims.Subject), nil
}

func tokenExpiry(token string) (time.Time, error) {
	claims, err := parseAccessToken(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
