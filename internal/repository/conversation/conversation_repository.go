// File: internal/repository/conversation/conversation_repository.go
package conversation

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
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrActiveConversationExists means another writer created the visitor's
	// active conversation first.
	ErrActiveConversationExists = errors.New("visitor already has an active conversation")
)

type gormConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

// Create inserts the conversation and any seed messages in one transaction and
// returns the record with its generated fields filled in.
func (r *gormConversationRepository) Create(ctx context.Context, conversation *domain.Conversation, seed ...*domain.Message) (*domain.Conversation, error) {
	if err := r.validateConversationInput(conversation); err != nil {
		log.Printf("[ConversationRepository] Validation failed: %v", err)
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		for _, message := range seed {
			message.ConversationID = conversation.ID
			if err := tx.Create(message).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return nil, ErrActiveConversationExists
		}
		log.Printf("[ConversationRepository] Database error during conversation creation: %v", err)
		return nil, errors.New("database error creating conversation")
	}

	log.Printf("[ConversationRepository] Conversation created with ID: %d (%d seed messages)", conversation.ID, len(seed))
	return conversation, nil
}

func (r *gormConversationRepository) FindByID(ctx context.Context, id uint) (*domain.Conversation, error) {
	if id == 0 {
		return nil, errors.New("invalid conversation ID")
	}

	var conversation domain.Conversation
	err := r.db.WithContext(ctx).First(&conversation, id).Error
	return r.handleFindError(err, &conversation, "FindByID")
}

// FindActiveByVisitorID returns the visitor's single active conversation.
func (r *gormConversationRepository) FindActiveByVisitorID(ctx context.Context, visitorID string) (*domain.Conversation, error) {
	if strings.TrimSpace(visitorID) == "" {
		return nil, errors.New("invalid visitor ID")
	}

	var conversations []domain.Conversation
	err := r.db.WithContext(ctx).
		Where("visitor_id = ? AND status = ?", visitorID, domain.ConversationActive).
		Limit(1).
		Find(&conversations).Error
	if err != nil {
		log.Printf("[ConversationRepository] Database error finding active conversation: %v", err)
		return nil, errors.New("database error fetching conversation")
	}
	if len(conversations) == 0 {
		return nil, ErrConversationNotFound
	}
	return &conversations[0], nil
}

// FindAllByRecent lists every conversation, most recently updated first.
func (r *gormConversationRepository) FindAllByRecent(ctx context.Context) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := r.db.WithContext(ctx).
		Order("updated_at DESC, id DESC").
		Find(&conversations).Error
	if err != nil {
		log.Printf("[ConversationRepository] Database error listing conversations: %v", err)
		return nil, errors.New("database error fetching conversations")
	}
	return conversations, nil
}

func (r *gormConversationRepository) FindByRecentWithPagination(ctx context.Context, limit, offset int) ([]domain.Conversation, int64, error) {
	if limit <= 0 || limit > 1000 {
		return nil, 0, errors.New("invalid limit: must be between 1 and 1000")
	}
	if offset < 0 {
		return nil, 0, errors.New("invalid offset: must be >= 0")
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Conversation{}).Count(&total).Error; err != nil {
		log.Printf("[ConversationRepository] Database error counting conversations: %v", err)
		return nil, 0, errors.New("database error counting conversations")
	}

	var conversations []domain.Conversation
	err := r.db.WithContext(ctx).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&conversations).Error
	if err != nil {
		log.Printf("[ConversationRepository] Database error in paginated query: %v", err)
		return nil, 0, errors.New("database error retrieving paginated conversations")
	}
	return conversations, total, nil
}

// Close marks a conversation closed. Closing a closed conversation is a no-op.
func (r *gormConversationRepository) Close(ctx context.Context, id uint) error {
	if id == 0 {
		return errors.New("invalid conversation ID")
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     domain.ConversationClosed,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		log.Printf("[ConversationRepository] Database error closing conversation ID %d: %v", id, result.Error)
		return errors.New("database error closing conversation")
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}

	log.Printf("[ConversationRepository] Conversation %d closed", id)
	return nil
}

func (r *gormConversationRepository) validateConversationInput(conversation *domain.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}
	if strings.TrimSpace(conversation.VisitorID) == "" {
		return errors.New("visitor ID is required")
	}
	if len(conversation.VisitorID) > 64 {
		return errors.New("visitor ID must be 64 characters or less")
	}
	if conversation.Status == "" {
		conversation.Status = domain.ConversationActive
	}
	if !conversation.Status.Valid() {
		return fmt.Errorf("unknown status %q", conversation.Status)
	}
	return nil
}

func (r *gormConversationRepository) handleFindError(err error, conversation *domain.Conversation, operation string) (*domain.Conversation, error) {
	if err == nil {
		return conversation, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	log.Printf("[ConversationRepository] %s database error: %v", operation, err)
	return nil, errors.New("database query failed")
}

// isUniqueViolation catches drivers that do not translate constraint errors.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
