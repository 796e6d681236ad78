// File: internal/repository/message/interface.go
package message

import (
	"context"
	"time"

	"github.com/iyunix/go-livechat/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) (*domain.Message, error)
	FindByConversationID(ctx context.Context, conversationID uint) ([]domain.Message, error)
	FindLatestByConversationID(ctx context.Context, conversationID uint) (*domain.Message, error)
	CountUnreadByConversationID(ctx context.Context, conversationID uint) (int64, error)
	MarkReadByConversationID(ctx context.Context, conversationID uint, readAt time.Time) (int64, error)
}
