// File: internal/services/operator_services/auth_service.go
package operator_services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iyunix/go-livechat/internal/auth"
	"github.com/iyunix/go-livechat/internal/domain"
	"github.com/iyunix/go-livechat/internal/repository/operator"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthService signs operators in and validates their session tokens.
type AuthService struct {
	operatorRepo operator.OperatorRepository
	jwtSecretKey []byte
	tokenTTL     time.Duration
	logger       Logger
}

func NewAuthService(operatorRepo operator.OperatorRepository, jwtSecretKey string, tokenTTL time.Duration, logger Logger) *AuthService {
	return &AuthService{
		operatorRepo: operatorRepo,
		jwtSecretKey: []byte(jwtSecretKey),
		tokenTTL:     tokenTTL,
		logger:       logger,
	}
}

// Login checks an operator's credentials and returns a signed token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Operator, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		s.logger.Warn("login attempt with empty credentials",
			"has_email", email != "",
			"has_password", password != "")
		return nil, "", ErrInvalidCredentials
	}

	op, err := s.operatorRepo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, operator.ErrOperatorNotFound) {
			s.logger.Error("operator lookup failed during login", "email", maskEmail(email), "error", err)
			return nil, "", fmt.Errorf("login unavailable: %w", err)
		}
		s.logger.Warn("login failed - operator not found", "email", maskEmail(email))
		return nil, "", ErrInvalidCredentials
	}

	if err := op.ValidatePassword(password); err != nil {
		s.logger.Warn("login failed - invalid password", "email", maskEmail(email), "operator_id", op.ID)
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.GenerateJWT(op.ID, s.jwtSecretKey, s.tokenTTL)
	if err != nil {
		s.logger.Error("JWT token generation failed", "error", err, "operator_id", op.ID)
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("login successful", "email", maskEmail(email), "operator_id", op.ID)
	return op, token, nil
}

// ValidateToken returns the operator a token was issued to. Tokens for
// operators that no longer exist are rejected.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	operatorID, err := auth.ValidateToken(token, s.jwtSecretKey)
	if err != nil {
		s.logger.Debug("JWT token validation failed", "error", err)
		return 0, ErrInvalidToken
	}
	if _, err := s.operatorRepo.FindByID(ctx, operatorID); err != nil {
		s.logger.Warn("token for unknown operator", "operator_id", operatorID)
		return 0, ErrInvalidToken
	}
	return operatorID, nil
}
