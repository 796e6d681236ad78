// File: internal/domain/conversation.go
package domain

import "time"

// ConversationStatus is the lifecycle state of a support thread.
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationActive, ConversationClosed:
		return true
	}
	return false
}

// Conversation represents one visitor's support thread.
// At most one conversation per visitor is active at a time; the partial unique
// index created by the database package enforces it.
type Conversation struct {
	ID        uint               `gorm:"primarykey" json:"id"`
	VisitorID string             `gorm:"not null;size:64;index" json:"visitor_id"`
	Status    ConversationStatus `gorm:"not null;size:16;default:active;index" json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// IsActive reports whether the conversation still accepts messages from the visitor widget.
func (c *Conversation) IsActive() bool {
	return c.Status == ConversationActive
}
