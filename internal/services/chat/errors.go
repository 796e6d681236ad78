package chat

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeValidation       ErrorType = "VALIDATION"
	ErrTypeStoreUnavailable ErrorType = "STORE_UNAVAILABLE"
	ErrTypeSubscriptionLost ErrorType = "SUBSCRIPTION_LOST"
	ErrTypeUnauthorized     ErrorType = "UNAUTHORIZED"
	ErrTypeNotFound         ErrorType = "NOT_FOUND"
	ErrTypeState            ErrorType = "STATE"
)

// Sentinels for errors.Is; they match any ChatError of the same Type.
var (
	ErrValidation       = &ChatError{Type: ErrTypeValidation}
	ErrStoreUnavailable = &ChatError{Type: ErrTypeStoreUnavailable}
	ErrSubscriptionLost = &ChatError{Type: ErrTypeSubscriptionLost}
	ErrUnauthorized     = &ChatError{Type: ErrTypeUnauthorized}
	ErrNotFound         = &ChatError{Type: ErrTypeNotFound}
	ErrState            = &ChatError{Type: ErrTypeState}
)

type ChatError struct {
	Type           ErrorType
	Operation      string
	Message        string
	ConversationID uint
	Cause          error
}

func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Chat %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("Chat %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *ChatError) Unwrap() error { return e.Cause }

// Is matches on Type so callers can test against the package sentinels.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	return ok && t.Type == e.Type
}

func NewValidationError(operation, msg string) *ChatError {
	return &ChatError{Type: ErrTypeValidation, Operation: operation, Message: msg}
}

func NewStoreUnavailableError(operation string, conversationID uint, cause error) *ChatError {
	return &ChatError{
		Type:           ErrTypeStoreUnavailable,
		Operation:      operation,
		Message:        "store unavailable",
		ConversationID: conversationID,
		Cause:          cause,
	}
}

func NewSubscriptionLostError(conversationID uint, cause error) *ChatError {
	return &ChatError{
		Type:           ErrTypeSubscriptionLost,
		Operation:      "subscribe",
		Message:        "live feed disconnected",
		ConversationID: conversationID,
		Cause:          cause,
	}
}

func NewUnauthorizedError(operation string) *ChatError {
	return &ChatError{Type: ErrTypeUnauthorized, Operation: operation, Message: "operator is not authenticated"}
}

func NewNotFoundError(operation string, conversationID uint) *ChatError {
	return &ChatError{
		Type:           ErrTypeNotFound,
		Operation:      operation,
		Message:        "conversation not found",
		ConversationID: conversationID,
	}
}

func NewStateError(operation, msg string) *ChatError {
	return &ChatError{Type: ErrTypeState, Operation: operation, Message: msg}
}

func NewConversationClosedError(operation string, conversationID uint) *ChatError {
	return &ChatError{
		Type:           ErrTypeState,
		Operation:      operation,
		Message:        conversationClosedMessage,
		ConversationID: conversationID,
	}
}

const conversationClosedMessage = "conversation is closed"

// IsConversationClosed reports whether err came from writing to a closed
// conversation.
func IsConversationClosed(err error) bool {
	var chatErr *ChatError
	return errors.As(err, &chatErr) && chatErr.Type == ErrTypeState && chatErr.Message == conversationClosedMessage
}
