package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminTokenGuard compares a shared operator token against its bcrypt hash.
type AdminTokenGuard struct {
	hash []byte
}

func NewAdminTokenGuard(hash string) (*AdminTokenGuard, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, errors.New("admin token hash is not a bcrypt hash")
	}
	return &AdminTokenGuard{hash: []byte(hash)}, nil
}

// Check reports whether token matches. An empty token never matches.
func (g *AdminTokenGuard) Check(token string) bool {
	token = strings.TrimSpace(token)
	if g == nil || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(token)) == nil
}

// HashAdminToken produces the value stored in security.admin_token_hash.
func HashAdminToken(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.New("admin token must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
