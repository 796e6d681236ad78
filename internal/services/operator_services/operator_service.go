// File: internal/services/operator_services/operator_service.go
package operator_services

import (
	"context"
	"fmt"

	"github.com/iyunix/go-livechat/internal/domain"
	"github.com/iyunix/go-livechat/internal/repository/operator"
)

// OperatorService manages operator accounts for administrative tooling.
type OperatorService struct {
	operatorRepo operator.OperatorRepository
	logger       Logger
}

func NewOperatorService(operatorRepo operator.OperatorRepository, logger Logger) *OperatorService {
	return &OperatorService{operatorRepo: operatorRepo, logger: logger}
}

// CreateOperator hashes the password and stores a new operator.
func (s *OperatorService) CreateOperator(ctx context.Context, email, displayName, password string) (*domain.Operator, error) {
	op := &domain.Operator{Email: email, DisplayName: displayName}
	if err := op.HashPassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	created, err := s.operatorRepo.Create(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}

	s.logger.Info("operator created", "operator_id", created.ID, "email", maskEmail(created.Email))
	return created, nil
}

// ListOperators retrieves every operator account.
func (s *OperatorService) ListOperators(ctx context.Context) ([]domain.Operator, error) {
	operators, err := s.operatorRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get all operators: %w", err)
	}
	return operators, nil
}
