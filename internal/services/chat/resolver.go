package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iyunix/go-livechat/internal/domain"
	"github.com/iyunix/go-livechat/internal/repository/conversation"
)

const maxPageSize = 1000

// ConversationResolver maps a visitor identity onto that visitor's single
// active conversation, creating one (with its welcome message) on first use.
type ConversationResolver struct {
	config   *Config
	convRepo conversation.ConversationRepository
	notifier Notifier
	logger   Logger
}

func NewConversationResolver(config *Config, convRepo conversation.ConversationRepository, notifier Notifier, logger Logger) *ConversationResolver {
	return &ConversationResolver{config: config, convRepo: convRepo, notifier: notifier, logger: logger}
}

// Resolve returns the visitor's active conversation. Two concurrent resolves
// for a new visitor converge: the loser of the insert race hits the active
// conversation unique index and re-reads the winner's row.
func (r *ConversationResolver) Resolve(ctx context.Context, visitorID string) (*domain.Conversation, error) {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return nil, NewValidationError("resolve_conversation", "visitor id cannot be empty")
	}

	existing, err := r.convRepo.FindActiveByVisitorID(ctx, visitorID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, conversation.ErrConversationNotFound) {
		r.logger.Error("active conversation lookup failed", "visitor_id", visitorID, "error", err)
		return nil, NewStoreUnavailableError("resolve_conversation", 0, err)
	}

	seed := r.welcomeMessage()
	created, err := r.convRepo.Create(ctx,
		&domain.Conversation{VisitorID: visitorID, Status: domain.ConversationActive},
		seed...)
	switch {
	case err == nil:
		r.logger.Info("conversation created", "conversation_id", created.ID, "visitor_id", visitorID)
		r.announce(ctx, seed)
		return created, nil
	case errors.Is(err, conversation.ErrActiveConversationExists):
		r.logger.Debug("lost conversation create race, re-reading", "visitor_id", visitorID)
		winner, findErr := r.convRepo.FindActiveByVisitorID(ctx, visitorID)
		if findErr != nil {
			return nil, NewStoreUnavailableError("resolve_conversation", 0, findErr)
		}
		return winner, nil
	default:
		r.logger.Error("conversation create failed", "visitor_id", visitorID, "error", err)
		return nil, NewStoreUnavailableError("resolve_conversation", 0, err)
	}
}

// Active returns the visitor's active conversation without creating one.
func (r *ConversationResolver) Active(ctx context.Context, visitorID string) (*domain.Conversation, error) {
	if strings.TrimSpace(visitorID) == "" {
		return nil, NewValidationError("active_conversation", "visitor id cannot be empty")
	}
	conv, err := r.convRepo.FindActiveByVisitorID(ctx, visitorID)
	if errors.Is(err, conversation.ErrConversationNotFound) {
		return nil, NewNotFoundError("active_conversation", 0)
	}
	if err != nil {
		return nil, NewStoreUnavailableError("active_conversation", 0, err)
	}
	return conv, nil
}

// Lookup fetches a conversation by id regardless of status.
func (r *ConversationResolver) Lookup(ctx context.Context, conversationID uint) (*domain.Conversation, error) {
	if conversationID == 0 {
		return nil, NewNotFoundError("lookup_conversation", conversationID)
	}
	conv, err := r.convRepo.FindByID(ctx, conversationID)
	if errors.Is(err, conversation.ErrConversationNotFound) {
		return nil, NewNotFoundError("lookup_conversation", conversationID)
	}
	if err != nil {
		return nil, NewStoreUnavailableError("lookup_conversation", conversationID, err)
	}
	return conv, nil
}

// CloseConversation retires a conversation. The visitor's next Resolve starts
// a fresh one. Closing a closed conversation is a no-op.
func (r *ConversationResolver) CloseConversation(ctx context.Context, conversationID uint) error {
	if conversationID == 0 {
		return NewNotFoundError("close_conversation", conversationID)
	}
	err := r.convRepo.Close(ctx, conversationID)
	if errors.Is(err, conversation.ErrConversationNotFound) {
		return NewNotFoundError("close_conversation", conversationID)
	}
	if err != nil {
		return NewStoreUnavailableError("close_conversation", conversationID, err)
	}
	r.logger.Info("conversation closed", "conversation_id", conversationID)
	return nil
}

// ListRecent returns every conversation, most recently updated first.
func (r *ConversationResolver) ListRecent(ctx context.Context) ([]domain.Conversation, error) {
	convs, err := r.convRepo.FindAllByRecent(ctx)
	if err != nil {
		return nil, NewStoreUnavailableError("list_conversations", 0, err)
	}
	return convs, nil
}

// ListPage returns one page of conversations, most recently updated first,
// and the total count.
func (r *ConversationResolver) ListPage(ctx context.Context, limit, offset int) ([]domain.Conversation, int64, error) {
	if limit <= 0 || limit > maxPageSize || offset < 0 {
		return nil, 0, NewValidationError("list_conversations", fmt.Sprintf("limit must be 1-%d and offset non-negative", maxPageSize))
	}
	convs, total, err := r.convRepo.FindByRecentWithPagination(ctx, limit, offset)
	if err != nil {
		return nil, 0, NewStoreUnavailableError("list_conversations", 0, err)
	}
	return convs, total, nil
}

// announce puts seeded messages on the feed so consoles learn about the new
// conversation without waiting for the visitor's first message.
func (r *ConversationResolver) announce(ctx context.Context, seed []*domain.Message) {
	if r.notifier == nil {
		return
	}
	for _, msg := range seed {
		if err := r.notifier.Notify(ctx, *msg); err != nil {
			r.logger.Warn("welcome message stored but feed notify failed", "conversation_id", msg.ConversationID, "error", err)
		}
	}
}

func (r *ConversationResolver) welcomeMessage() []*domain.Message {
	if r.config.WelcomeMessage == "" {
		return nil
	}
	return []*domain.Message{{SenderType: domain.SenderOperator, Content: r.config.WelcomeMessage}}
}
