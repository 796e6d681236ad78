// File: internal/services/chat_service.go
package services

import (
	"context"

	"github.com/iyunix/go-livechat/internal/domain"
	"github.com/iyunix/go-livechat/internal/repository/conversation"
	"github.com/iyunix/go-livechat/internal/repository/message"
	chatservice "github.com/iyunix/go-livechat/internal/services/chat"
)

// ChatService wires the chat engine components together and exposes the
// request-scoped operations used by the HTTP handlers. Long-lived clients
// (WebSocket connections) get their own VisitorSession or OperatorConsole.
type ChatService struct {
	config    *chatservice.Config
	resolver  *chatservice.ConversationResolver
	channel   *chatservice.MessageChannel
	readState *chatservice.ReadStateTracker
	logger    Logger
}

func NewChatService(
	config *chatservice.Config,
	convRepo conversation.ConversationRepository,
	messageRepo message.MessageRepository,
	feed chatservice.Feed,
	notifier chatservice.Notifier,
	logger Logger,
) (*ChatService, error) {
	// Validate dependencies
	if convRepo == nil {
		return nil, chatservice.NewValidationError("constructor", "conversation repository is required")
	}
	if messageRepo == nil {
		return nil, chatservice.NewValidationError("constructor", "message repository is required")
	}
	if feed == nil || notifier == nil {
		return nil, chatservice.NewValidationError("constructor", "change feed is required")
	}
	if config == nil {
		config = chatservice.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, chatservice.NewValidationError("config", err.Error())
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}

	return &ChatService{
		config:    config,
		resolver:  chatservice.NewConversationResolver(config, convRepo, notifier, logger),
		channel:   chatservice.NewMessageChannel(config, messageRepo, feed, notifier, logger),
		readState: chatservice.NewReadStateTracker(messageRepo, logger),
		logger:    logger,
	}, nil
}

func (s *ChatService) Config() *chatservice.Config { return s.config }

// Visitor operations

// OpenConversation resolves the visitor's conversation and returns it with
// its history.
func (s *ChatService) OpenConversation(ctx context.Context, visitorID string) (*domain.Conversation, []domain.Message, error) {
	conv, err := s.resolver.Resolve(ctx, visitorID)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.channel.List(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, history, nil
}

// VisitorMessages lists the visitor's active conversation.
func (s *ChatService) VisitorMessages(ctx context.Context, visitorID string) (*domain.Conversation, []domain.Message, error) {
	conv, err := s.resolver.Active(ctx, visitorID)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.channel.List(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, history, nil
}

// SendVisitorMessage appends to the visitor's active conversation.
func (s *ChatService) SendVisitorMessage(ctx context.Context, visitorID, content string) (*domain.Message, error) {
	conv, err := s.resolver.Active(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	return s.channel.Append(ctx, conv.ID, domain.SenderVisitor, content)
}

// Operator operations

func (s *ChatService) Summaries(ctx context.Context) ([]chatservice.ConversationSummary, error) {
	return chatservice.LoadSummaries(ctx, s.resolver, s.channel, s.readState)
}

// ViewConversation returns a conversation's history and marks its visitor
// messages read, as opening it in the console does.
func (s *ChatService) ViewConversation(ctx context.Context, conversationID uint) (*domain.Conversation, []domain.Message, error) {
	conv, err := s.resolver.Lookup(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if _, _, err := s.readState.MarkConversationRead(ctx, conversationID); err != nil {
		return nil, nil, err
	}
	history, err := s.channel.List(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	return conv, history, nil
}

func (s *ChatService) SendOperatorMessage(ctx context.Context, conversationID uint, content string) (*domain.Message, error) {
	return s.channel.Append(ctx, conversationID, domain.SenderOperator, content)
}

func (s *ChatService) CloseConversation(ctx context.Context, conversationID uint) error {
	return s.resolver.CloseConversation(ctx, conversationID)
}

// ListConversations pages through conversations, most recently updated first.
func (s *ChatService) ListConversations(ctx context.Context, limit, offset int) ([]domain.Conversation, int64, error) {
	return s.resolver.ListPage(ctx, limit, offset)
}

// Live clients

func (s *ChatService) NewVisitorSession(identity chatservice.IdentityProvider, onEvent chatservice.EventHandler) *chatservice.VisitorSession {
	return chatservice.NewVisitorSession(s.config, identity, s.resolver, s.channel, s.logger, onEvent)
}

func (s *ChatService) NewOperatorConsole(auth chatservice.Authenticator, onEvent chatservice.EventHandler) *chatservice.OperatorConsole {
	return chatservice.NewOperatorConsole(s.config, auth, s.resolver, s.channel, s.readState, s.logger, onEvent)
}
