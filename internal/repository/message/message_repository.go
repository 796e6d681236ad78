// File: internal/repository/message/message_repository.go
package message

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/iyunix/go-livechat/internal/domain"
)

var (
	ErrMessageNotFound      = errors.New("message not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationClosed   = errors.New("conversation is closed")
)

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create inserts the message and advances the owning conversation's updated_at
// in the same transaction. Closed conversations accept no new messages. The returned message carries its generated id and
// created_at.
func (r *gormMessageRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	if err := r.validateMessageInput(message); err != nil {
		log.Printf("[MessageRepository] Validation failed: %v", err)
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner domain.Conversation
		if err := tx.Select("id", "status").First(&owner, message.ConversationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrConversationNotFound
			}
			return err
		}
		if !owner.IsActive() {
			return ErrConversationClosed
		}
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		touched := tx.Model(&domain.Conversation{}).
			Where("id = ?", message.ConversationID).
			Update("updated_at", message.CreatedAt)
		if touched.Error != nil {
			return touched.Error
		}
		if touched.RowsAffected == 0 {
			return ErrConversationNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) || errors.Is(err, ErrConversationClosed) {
			return nil, err
		}
		// Content is never logged.
		log.Printf("[MessageRepository] Database error during message creation for conversation ID %d: %v", message.ConversationID, err)
		return nil, errors.New("database error creating message")
	}

	return message, nil
}

// FindByConversationID returns the full history in ascending creation order.
func (r *gormMessageRepository) FindByConversationID(ctx context.Context, conversationID uint) ([]domain.Message, error) {
	if conversationID == 0 {
		return nil, errors.New("invalid conversation ID")
	}

	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		log.Printf("[MessageRepository] Database error finding messages for conversation ID %d: %v", conversationID, err)
		return nil, errors.New("database error fetching messages")
	}
	return messages, nil
}

func (r *gormMessageRepository) FindLatestByConversationID(ctx context.Context, conversationID uint) (*domain.Message, error) {
	if conversationID == 0 {
		return nil, errors.New("invalid conversation ID")
	}

	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&messages).Error
	if err != nil {
		log.Printf("[MessageRepository] Database error finding latest message for conversation ID %d: %v", conversationID, err)
		return nil, errors.New("database error fetching latest message")
	}
	if len(messages) == 0 {
		return nil, ErrMessageNotFound
	}
	return &messages[0], nil
}

// CountUnreadByConversationID counts visitor messages that no operator has seen.
func (r *gormMessageRepository) CountUnreadByConversationID(ctx context.Context, conversationID uint) (int64, error) {
	if conversationID == 0 {
		return 0, errors.New("invalid conversation ID")
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_type = ? AND read_at IS NULL", conversationID, domain.SenderVisitor).
		Count(&count).Error
	if err != nil {
		log.Printf("[MessageRepository] Database error counting unread messages for conversation ID %d: %v", conversationID, err)
		return 0, errors.New("database error counting unread messages")
	}
	return count, nil
}

// MarkReadByConversationID stamps every unread visitor message with readAt.
// Already-read messages keep their original stamp, so repeated calls affect
// nothing.
func (r *gormMessageRepository) MarkReadByConversationID(ctx context.Context, conversationID uint, readAt time.Time) (int64, error) {
	if conversationID == 0 {
		return 0, errors.New("invalid conversation ID")
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_type = ? AND read_at IS NULL", conversationID, domain.SenderVisitor).
		Update("read_at", readAt)
	if result.Error != nil {
		log.Printf("[MessageRepository] Database error marking messages read for conversation ID %d: %v", conversationID, result.Error)
		return 0, errors.New("database error marking messages read")
	}
	return result.RowsAffected, nil
}

func (r *gormMessageRepository) validateMessageInput(message *domain.Message) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if message.ConversationID == 0 {
		return errors.New("conversation ID is required")
	}
	if !message.SenderType.Valid() {
		return fmt.Errorf("unknown sender type %q", message.SenderType)
	}
	if strings.TrimSpace(message.Content) == "" {
		return errors.New("content cannot be empty")
	}
	if message.SenderType == domain.SenderOperator && message.ReadAt != nil {
		return errors.New("operator messages are never read-tracked")
	}
	return nil
}
