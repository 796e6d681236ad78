package chat

import (
	"sort"
	"time"

	"github.com/iyunix/go-livechat/internal/domain"
)

// Thread is a session's in-memory view of one conversation: messages in
// (created_at, id) order with at most one entry per message id. History loads,
// live-feed deliveries and send results all funnel through Add, so a message
// reaching the session by two paths is shown once.
//
// Thread is not safe for concurrent use; sessions guard it with their mutex.
type Thread struct {
	messages []domain.Message
	seen     map[uint]struct{}
}

func NewThread() *Thread {
	return &Thread{seen: make(map[uint]struct{})}
}

// Add inserts msg unless its id is already present. It reports whether the
// thread changed.
func (t *Thread) Add(msg domain.Message) bool {
	if _, dup := t.seen[msg.ID]; dup {
		return false
	}
	t.seen[msg.ID] = struct{}{}

	n := len(t.messages)
	if n == 0 || t.messages[n-1].Before(&msg) {
		t.messages = append(t.messages, msg)
		return true
	}

	i := sort.Search(n, func(i int) bool { return msg.Before(&t.messages[i]) })
	t.messages = append(t.messages, domain.Message{})
	copy(t.messages[i+1:], t.messages[i:])
	t.messages[i] = msg
	return true
}

// Merge adds every message and returns the ones that were new, in thread order.
func (t *Thread) Merge(msgs []domain.Message) []domain.Message {
	var added []domain.Message
	for _, msg := range msgs {
		if t.Add(msg) {
			added = append(added, msg)
		}
	}
	sort.SliceStable(added, func(i, j int) bool { return added[i].Before(&added[j]) })
	return added
}

// Contains reports whether a message id is already in the thread.
func (t *Thread) Contains(id uint) bool {
	_, ok := t.seen[id]
	return ok
}

// MarkRead mirrors a store-side read stamp onto the unread visitor messages
// held in memory.
func (t *Thread) MarkRead(readAt time.Time) {
	for i := range t.messages {
		if t.messages[i].IsUnread() {
			stamp := readAt
			t.messages[i].ReadAt = &stamp
		}
	}
}

func (t *Thread) Len() int { return len(t.messages) }

// Snapshot returns a copy safe to hand to callers.
func (t *Thread) Snapshot() []domain.Message {
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}
