package operator

import (
	"context"

	"github.com/iyunix/go-livechat/internal/domain"
)

// OperatorRepository handles operator account data operations.
type OperatorRepository interface {
	Create(ctx context.Context, operator *domain.Operator) (*domain.Operator, error)
	FindByID(ctx context.Context, id uint) (*domain.Operator, error)
	FindByEmail(ctx context.Context, email string) (*domain.Operator, error)
	FindAll(ctx context.Context) ([]domain.Operator, error)
}
