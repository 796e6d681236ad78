package chat

import (
	"context"
	"time"

	"github.com/iyunix/go-livechat/internal/repository/message"
)

// ReadStateTracker owns the operator-side read receipts on visitor messages.
type ReadStateTracker struct {
	msgRepo message.MessageRepository
	logger  Logger
	now     func() time.Time
}

func NewReadStateTracker(msgRepo message.MessageRepository, logger Logger) *ReadStateTracker {
	return &ReadStateTracker{
		msgRepo: msgRepo,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// MarkConversationRead stamps every unread visitor message in the conversation
// and returns how many rows changed along with the stamp written. A second
// call changes nothing.
func (t *ReadStateTracker) MarkConversationRead(ctx context.Context, conversationID uint) (int64, time.Time, error) {
	if conversationID == 0 {
		return 0, time.Time{}, NewValidationError("mark_read", "conversation id is required")
	}
	readAt := t.now()
	marked, err := t.msgRepo.MarkReadByConversationID(ctx, conversationID, readAt)
	if err != nil {
		return 0, time.Time{}, NewStoreUnavailableError("mark_read", conversationID, err)
	}
	if marked > 0 {
		t.logger.Debug("messages marked read", "conversation_id", conversationID, "count", marked)
	}
	return marked, readAt, nil
}

// CountUnread counts visitor messages no operator has viewed yet.
func (t *ReadStateTracker) CountUnread(ctx context.Context, conversationID uint) (int64, error) {
	if conversationID == 0 {
		return 0, NewValidationError("count_unread", "conversation id is required")
	}
	n, err := t.msgRepo.CountUnreadByConversationID(ctx, conversationID)
	if err != nil {
		return 0, NewStoreUnavailableError("count_unread", conversationID, err)
	}
	return n, nil
}
