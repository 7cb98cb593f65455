package testutil

import (
	"fmt"
	"net/http"

	"parley/internal/platform/middleware"
)

// StaticValidator resolves bearer tokens from a fixed token -> claims map.
// It lets handler tests exercise the real auth middleware without minting
// signed JWTs.
type StaticValidator struct {
	Tokens map[string]middleware.JWTClaims
}

func (v *StaticValidator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, ok := v.Tokens[tokenString]
	if !ok {
		return nil, fmt.Errorf("unknown token %q", tokenString)
	}
	return &claims, nil
}

// NewStaticValidator builds a validator where each user id is its own token.
func NewStaticValidator(users map[string]string) *StaticValidator {
	tokens := make(map[string]middleware.JWTClaims, len(users))
	for userID, role := range users {
		tokens[userID] = middleware.JWTClaims{UserID: userID, Role: role}
	}
	return &StaticValidator{Tokens: tokens}
}

// WithBearer sets the Authorization header. Pair with a StaticValidator that
// maps the token to claims.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
