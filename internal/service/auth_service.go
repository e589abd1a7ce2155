package service

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// OperatorSubject is the token subject of the admin API operator.
const OperatorSubject = "operator"

// AuthService issues admin API tokens against the configured operator
// password hash.
type AuthService struct {
	passwordHash string
	tokenMgr     *auth.TokenManager
	logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		passwordHash: strings.TrimSpace(cfg.AdminPasswordHash),
		tokenMgr:     tokens,
		logger:       logger,
	}
}

// Login checks password and returns a token of the requested scope.
func (s *AuthService) Login(password string, scope auth.Scope) (string, time.Time, error) {
	if s.passwordHash == "" {
		return "", time.Time{}, apperrors.NewForbidden("admin login disabled")
	}
	if scope == "" {
		scope = auth.ScopeAdmin
	}
	if !auth.ValidScope(string(scope)) {
		return "", time.Time{}, apperrors.NewValidationError("unknown scope", map[string]any{"scope": scope})
	}
	if err := auth.ComparePassword(s.passwordHash, password); err != nil {
		s.logger.Warn("admin login rejected")
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(OperatorSubject, scope)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	s.logger.Info("admin token issued", zap.String("scope", string(scope)), zap.Time("expires_at", exp))
	return token, exp, nil
}
