// File: internal/repository/operator/gorm_operator_repository.go
package operator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/iyunix/go-livechat/internal/domain"
)

var (
	ErrOperatorNotFound = errors.New("operator not found")
	ErrEmailTaken       = errors.New("an operator with this email already exists")
)

type gormOperatorRepository struct {
	db *gorm.DB
}

func NewGormOperatorRepository(db *gorm.DB) OperatorRepository {
	return &gormOperatorRepository{db: db}
}

func (r *gormOperatorRepository) Create(ctx context.Context, operator *domain.Operator) (*domain.Operator, error) {
	if operator == nil {
		return nil, errors.New("operator cannot be nil")
	}
	if err := operator.IsValid(); err != nil {
		log.Printf("[OperatorRepository] Validation failed: %v", err)
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(operator).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, ErrEmailTaken
		}
		// Secure logging - no credentials exposed
		log.Printf("[OperatorRepository] Database error during operator creation: %v", err)
		return nil, errors.New("database error creating operator")
	}

	log.Printf("[OperatorRepository] Operator created successfully with ID: %d", operator.ID)
	return operator, nil
}

func (r *gormOperatorRepository) FindByID(ctx context.Context, id uint) (*domain.Operator, error) {
	if id == 0 {
		return nil, errors.New("invalid operator ID")
	}

	var operator domain.Operator
	err := r.db.WithContext(ctx).First(&operator, id).Error
	return r.handleFindError(err, &operator)
}

func (r *gormOperatorRepository) FindByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("email is required")
	}

	var operator domain.Operator
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&operator).Error
	return r.handleFindError(err, &operator)
}

func (r *gormOperatorRepository) FindAll(ctx context.Context) ([]domain.Operator, error) {
	var operators []domain.Operator
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&operators).Error; err != nil {
		log.Printf("[OperatorRepository] Database error listing operators: %v", err)
		return nil, errors.New("database error fetching operators")
	}
	return operators, nil
}

func (r *gormOperatorRepository) handleFindError(err error, operator *domain.Operator) (*domain.Operator, error) {
	if err == nil {
		return operator, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOperatorNotFound
	}
	log.Printf("[OperatorRepository] Database query failed: %v", err)
	return nil, errors.New("database query failed")
}
