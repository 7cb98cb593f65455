package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/platform/middleware"
	"parley/pkg/domain"
	dErrors "parley/pkg/domain-errors"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-key", "parley", "parley-api")
	userID := domain.NewUserID()

	token, err := svc.GenerateAccessToken(userID, middleware.RoleModerator, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, middleware.RoleModerator, claims.Role)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService("test-key", "parley", "parley-api")
	token, err := svc.GenerateAccessToken(domain.NewUserID(), "", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := NewJWTService("key-a", "parley", "parley-api")
	verifier := NewJWTService("key-b", "parley", "parley-api")

	token, err := issuer.GenerateAccessToken(domain.NewUserID(), "", time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestAdapterNarrowsClaims(t *testing.T) {
	svc := NewJWTService("test-key", "parley", "parley-api")
	adapter := NewJWTServiceAdapter(svc)
	userID := domain.NewUserID()

	token, err := svc.GenerateAccessToken(userID, "moderator", time.Hour)
	require.NoError(t, err)

	claims, err := adapter.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "moderator", claims.Role)
}
