package realtime

import (
	"errors"

	"github.com/iyunix/go-livechat/internal/domain"
	chatservice "github.com/iyunix/go-livechat/internal/services/chat"
)

// Client frame types.
const (
	FrameOpen              = "open"
	FrameSend              = "send"
	FrameClose             = "close"
	FrameSelect            = "select"
	FrameDeselect          = "deselect"
	FrameCloseConversation = "close_conversation"
)

// InboundFrame is any frame a browser may send.
type InboundFrame struct {
	Type           string `json:"type"`
	ConversationID uint   `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
}

// OutboundFrame is any frame the server pushes. Type is one of the session
// event kinds.
type OutboundFrame struct {
	Type         string                            `json:"type"`
	Conversation *domain.Conversation              `json:"conversation,omitempty"`
	Messages     []domain.Message                  `json:"messages,omitempty"`
	Message      *domain.Message                   `json:"message,omitempty"`
	Summaries    []chatservice.ConversationSummary `json:"conversations,omitempty"`
	Code         string                            `json:"code,omitempty"`
	Error        string                            `json:"error,omitempty"`
	Restore      string                            `json:"restore,omitempty"`
}

// FrameFromEvent renders a session event for the wire.
func FrameFromEvent(ev chatservice.Event) OutboundFrame {
	frame := OutboundFrame{
		Type:         string(ev.Kind),
		Conversation: ev.Conversation,
		Messages:     ev.Messages,
		Message:      ev.Message,
		Summaries:    ev.Summaries,
	}
	if ev.Kind == chatservice.EventHistory && frame.Messages == nil {
		frame.Messages = []domain.Message{}
	}
	if ev.Kind == chatservice.EventConversations && frame.Summaries == nil {
		frame.Summaries = []chatservice.ConversationSummary{}
	}
	if ev.Err != nil {
		frame.Code, frame.Error = ErrorCode(ev.Err), PublicMessage(ev.Err)
	}
	return frame
}

// ErrorFrame reports a failed client action. restore carries un-sent content
// back to the input box.
func ErrorFrame(err error, restore string) OutboundFrame {
	return OutboundFrame{
		Type:    string(chatservice.EventError),
		Code:    ErrorCode(err),
		Error:   PublicMessage(err),
		Restore: restore,
	}
}

// ErrorCode maps an error onto the taxonomy name shown to clients.
func ErrorCode(err error) string {
	var chatErr *chatservice.ChatError
	if errors.As(err, &chatErr) {
		return string(chatErr.Type)
	}
	return "INTERNAL"
}

// PublicMessage keeps store details out of client-visible text.
func PublicMessage(err error) string {
	var chatErr *chatservice.ChatError
	if !errors.As(err, &chatErr) {
		return "something went wrong"
	}
	switch chatErr.Type {
	case chatservice.ErrTypeStoreUnavailable:
		return "chat is temporarily unavailable, please try again"
	case chatservice.ErrTypeSubscriptionLost:
		return "live updates were interrupted"
	default:
		return chatErr.Message
	}
}
