// File: internal/domain/message.go
package domain

import "time"

// SenderType tags who authored a message.
type SenderType string

const (
	SenderVisitor  SenderType = "visitor"
	SenderOperator SenderType = "operator"
)

// Valid reports whether t is one of the two sender roles.
func (t SenderType) Valid() bool {
	switch t {
	case SenderVisitor, SenderOperator:
		return true
	}
	return false
}

// Message is a single utterance within a conversation. Messages are immutable
// once appended except for the single ReadAt transition on visitor messages.
type Message struct {
	ID             uint       `gorm:"primarykey" json:"id"`
	ConversationID uint       `gorm:"not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	SenderType     SenderType `gorm:"not null;size:16" json:"sender_type"`
	Content        string     `gorm:"not null" json:"content"`
	CreatedAt      time.Time  `gorm:"index:idx_messages_conversation_created,priority:2" json:"created_at"`
	ReadAt         *time.Time `gorm:"index" json:"read_at"`
}

// IsUnread reports whether the message counts towards a conversation's unread badge.
func (m *Message) IsUnread() bool {
	return m.SenderType == SenderVisitor && m.ReadAt == nil
}

// Before orders messages by creation time, breaking ties by id.
func (m *Message) Before(other *Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
