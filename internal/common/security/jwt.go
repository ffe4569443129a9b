package security

import (
	"errors"
	"time"

	"problem_market/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

// InitJWT sets up verification with the key shared with the identity provider.
func InitJWT() {
	TokenAuth = NewTokenAuth(config.AppConfig.JWTKey)
}

func NewTokenAuth(key []byte) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", key, nil)
}

// GenerateToken signs a session token for subject. Production tokens come from
// the identity provider; this exists for local development and tests.
func GenerateToken(auth *jwtauth.JWTAuth, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	_, tokenString, err := auth.Encode(claims)
	return tokenString, err
}

// GetSubjectFromClaims returns the external principal id carried in "sub".
func GetSubjectFromClaims(claims jwt.MapClaims) (string, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("sub claim is missing or not a string")
	}
	return sub, nil
}
