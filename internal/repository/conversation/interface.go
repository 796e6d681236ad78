package conversation

import (
	"context"

	"github.com/iyunix/go-livechat/internal/domain"
)

// ConversationRepository handles conversation data operations.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *domain.Conversation, seed ...*domain.Message) (*domain.Conversation, error)
	FindByID(ctx context.Context, id uint) (*domain.Conversation, error)
	FindActiveByVisitorID(ctx context.Context, visitorID string) (*domain.Conversation, error)
	FindAllByRecent(ctx context.Context) ([]domain.Conversation, error)
	FindByRecentWithPagination(ctx context.Context, limit, offset int) ([]domain.Conversation, int64, error)
	Close(ctx context.Context, id uint) error
}
