package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

func newAuthService(t *testing.T, password string) (*AuthService, *auth.TokenManager) {
	t.Helper()
	var hash string
	if password != "" {
		var err error
		hash, err = auth.HashPassword(password, bcrypt.MinCost)
		require.NoError(t, err)
	}
	tokens := auth.NewTokenManager("secret", 5)
	return NewAuthService(config.AuthConfig{AdminPasswordHash: hash}, tokens, nil), tokens
}

func TestLoginIssuesScopedToken(t *testing.T) {
	svc, tokens := newAuthService(t, "hunter2")

	token, exp, err := svc.Login("hunter2", "")
	require.NoError(t, err)
	assert.False(t, exp.IsZero())
	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, auth.ScopeAdmin, claims.Scope)
	assert.Equal(t, OperatorSubject, claims.Subject)

	token, _, err = svc.Login("hunter2", auth.ScopeRead)
	require.NoError(t, err)
	claims, err = tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, auth.ScopeRead, claims.Scope)
}

func TestLoginRejections(t *testing.T) {
	svc, _ := newAuthService(t, "hunter2")

	_, _, err := svc.Login("wrong", auth.ScopeAdmin)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, _, err = svc.Login("hunter2", auth.Scope("root"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	disabled, _ := newAuthService(t, "")
	_, _, err = disabled.Login("anything", auth.ScopeAdmin)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}
