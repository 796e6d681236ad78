package chat

import "github.com/iyunix/go-livechat/internal/domain"

type EventKind string

const (
	EventHistory          EventKind = "history"
	EventMessage          EventKind = "message"
	EventConversations    EventKind = "conversations"
	EventError            EventKind = "error"
	EventSubscriptionLost EventKind = "subscription_lost"
	// EventConversationClosed tells a widget its conversation was retired;
	// the next open resolves a fresh one.
	EventConversationClosed EventKind = "conversation_closed"
)

// Event is pushed from a session to its owner. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind         EventKind
	Conversation *domain.Conversation
	Messages     []domain.Message
	Message      *domain.Message
	Summaries    []ConversationSummary
	Err          error
}

// EventHandler receives session events one at a time, in order. It must not
// call back into the session that emitted the event.
type EventHandler func(Event)
