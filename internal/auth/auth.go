package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the bearer token claims. Subject carries the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenVerifier validates bearer tokens issued by the identity provider.
type TokenVerifier interface {
	ValidateToken(tokenString string) (*Claims, error)
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
