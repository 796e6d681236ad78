package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/iyunix/go-livechat/internal/domain"
	"github.com/iyunix/go-livechat/internal/feed"
	"github.com/iyunix/go-livechat/internal/repository/message"
)

const appendLockStripes = 64

// MessageChannel appends messages to conversations and hands out live
// subscriptions on inserts.
//
// Insert and notify for a conversation happen under one stripe lock, so every
// subscriber of that conversation observes messages in insertion order.
type MessageChannel struct {
	config   *Config
	msgRepo  message.MessageRepository
	feed     Feed
	notifier Notifier
	logger   Logger

	locks [appendLockStripes]sync.Mutex
}

func NewMessageChannel(config *Config, msgRepo message.MessageRepository, f Feed, notifier Notifier, logger Logger) *MessageChannel {
	return &MessageChannel{
		config:   config,
		msgRepo:  msgRepo,
		feed:     f,
		notifier: notifier,
		logger:   logger,
	}
}

// List returns the conversation's history in ascending (created_at, id) order.
func (c *MessageChannel) List(ctx context.Context, conversationID uint) ([]domain.Message, error) {
	if conversationID == 0 {
		return nil, NewValidationError("list_messages", "conversation id is required")
	}
	msgs, err := c.msgRepo.FindByConversationID(ctx, conversationID)
	if err != nil {
		return nil, NewStoreUnavailableError("list_messages", conversationID, err)
	}
	return msgs, nil
}

// Append stores a message and announces it on the feed. Content is trimmed;
// blank content is rejected before the store is touched. When the store
// fails the caller still owns the content and should give it back to the user.
func (c *MessageChannel) Append(ctx context.Context, conversationID uint, sender domain.SenderType, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	switch {
	case conversationID == 0:
		return nil, NewValidationError("append_message", "conversation id is required")
	case !sender.Valid():
		return nil, NewValidationError("append_message", "unknown sender type")
	case content == "":
		return nil, NewValidationError("append_message", "message content cannot be empty")
	case len(content) > c.config.MaxContentLength:
		return nil, NewValidationError("append_message", "message content is too long")
	}

	lock := &c.locks[conversationID%appendLockStripes]
	lock.Lock()
	defer lock.Unlock()

	created, err := c.msgRepo.Create(ctx, &domain.Message{
		ConversationID: conversationID,
		SenderType:     sender,
		Content:        content,
	})
	switch {
	case errors.Is(err, message.ErrConversationNotFound):
		return nil, NewNotFoundError("append_message", conversationID)
	case errors.Is(err, message.ErrConversationClosed):
		return nil, NewConversationClosedError("append_message", conversationID)
	case err != nil:
		c.logger.Error("message append failed", "conversation_id", conversationID, "sender", sender, "error", err)
		return nil, NewStoreUnavailableError("append_message", conversationID, err)
	}

	// The row is durable at this point; a feed hiccup only delays live
	// delivery until subscribers re-list.
	if err := c.notifier.Notify(ctx, *created); err != nil {
		c.logger.Warn("message stored but feed notify failed", "conversation_id", conversationID, "message_id", created.ID, "error", err)
	}

	c.logger.Debug("message appended", "conversation_id", conversationID, "message_id", created.ID, "sender", sender)
	return created, nil
}

// Subscribe opens a live stream of inserts for one conversation. The caller
// owns the subscription and must Close it exactly once.
func (c *MessageChannel) Subscribe(conversationID uint) (*feed.Subscription, error) {
	if conversationID == 0 {
		return nil, NewValidationError("subscribe", "conversation id is required")
	}
	return c.feed.Subscribe(feed.Filter{ConversationID: conversationID}), nil
}

// SubscribeAll opens an unfiltered stream of inserts across all conversations.
func (c *MessageChannel) SubscribeAll() *feed.Subscription {
	return c.feed.Subscribe(feed.Filter{})
}

// Latest returns the newest message of a conversation, or nil when it has none.
func (c *MessageChannel) Latest(ctx context.Context, conversationID uint) (*domain.Message, error) {
	latest, err := c.msgRepo.FindLatestByConversationID(ctx, conversationID)
	if errors.Is(err, message.ErrMessageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, NewStoreUnavailableError("latest_message", conversationID, err)
	}
	return latest, nil
}
