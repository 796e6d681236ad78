package chat

import (
	"context"

	"github.com/iyunix/go-livechat/internal/domain"
	"github.com/iyunix/go-livechat/internal/feed"
)

// Logger defines the logging interface used across chat services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Feed opens live subscriptions on message inserts.
type Feed interface {
	Subscribe(filter feed.Filter) *feed.Subscription
}

// Notifier announces a freshly inserted message to the feed.
type Notifier interface {
	Notify(ctx context.Context, msg domain.Message) error
}

// IdentityProvider yields the stable anonymous id of the current browser.
type IdentityProvider interface {
	GetOrCreateVisitorID() string
}

// Authenticator gates the operator console.
type Authenticator interface {
	IsOperatorAuthenticated(ctx context.Context) bool
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context) bool

func (f AuthenticatorFunc) IsOperatorAuthenticated(ctx context.Context) bool { return f(ctx) }

// ConversationSummary is one row of the operator's conversation list.
type ConversationSummary struct {
	Conversation domain.Conversation `json:"conversation"`
	LastMessage  *domain.Message     `json:"last_message,omitempty"`
	UnreadCount  int64               `json:"unread_count"`
}
