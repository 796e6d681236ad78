// Package feed delivers newly inserted messages to live subscribers.
//
// A Hub fans messages out in the order Publish is called. Callers that need
// per-conversation insertion order serialize insert+publish themselves.
package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/iyunix/go-livechat/internal/domain"
)

// ErrSubscriptionLost is reported by Subscription.Err when the feed dropped
// the subscriber, either because it fell behind or because the upstream
// source disconnected.
var ErrSubscriptionLost = errors.New("subscription lost")

const DefaultBufferSize = 64

// Filter selects which inserts a subscription receives. A zero ConversationID
// matches every conversation.
type Filter struct {
	ConversationID uint
}

func (f Filter) matches(msg *domain.Message) bool {
	return f.ConversationID == 0 || f.ConversationID == msg.ConversationID
}

// Subscription is one independent delivery stream. It is owned by the caller
// and must be released with Close.
type Subscription struct {
	ID     string
	Filter Filter

	hub  *Hub
	ch   chan domain.Message
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

// C delivers matching messages. It is closed when the subscription ends.
func (s *Subscription) C() <-chan domain.Message { return s.ch }

// Done is closed when the subscription ends for any reason.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns ErrSubscriptionLost if the feed ended the subscription, nil if
// the owner closed it or it is still live.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the subscription. Calling it more than once is harmless.
func (s *Subscription) Close() {
	s.hub.remove(s, nil)
}

func (s *Subscription) terminate(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		close(s.ch)
	})
}

// Hub is the in-process change feed for the messages table.
type Hub struct {
	bufferSize int
	logger     Logger

	mu   sync.Mutex
	subs map[string]*Subscription
}

// Logger is the logging surface used by the feed.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

func NewHub(bufferSize int, logger Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		bufferSize: bufferSize,
		logger:     logger,
		subs:       make(map[string]*Subscription),
	}
}

// Subscribe registers a new subscription for inserts matching filter.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Filter: filter,
		hub:    h,
		ch:     make(chan domain.Message, h.bufferSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()

	h.logger.Debug("feed subscription opened", "subscription_id", sub.ID, "conversation_id", filter.ConversationID)
	return sub
}

// Publish delivers msg to every matching subscription without blocking. A
// subscriber whose buffer is full is dropped with ErrSubscriptionLost rather
// than stalling the writer.
func (h *Hub) Publish(msg domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		if !sub.Filter.matches(&msg) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("feed subscriber fell behind, dropping it", "subscription_id", id)
			delete(h.subs, id)
			sub.terminate(ErrSubscriptionLost)
		}
	}
}

// Notify satisfies the notifier contract used by the message channel.
func (h *Hub) Notify(_ context.Context, msg domain.Message) error {
	h.Publish(msg)
	return nil
}

// Fail ends every current subscription with ErrSubscriptionLost. New
// subscriptions are still accepted afterwards.
func (h *Hub) Fail() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.terminate(ErrSubscriptionLost)
	}
	if len(subs) > 0 {
		h.logger.Warn("feed failed all subscriptions", "count", len(subs))
	}
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(sub *Subscription, err error) {
	h.mu.Lock()
	if current, ok := h.subs[sub.ID]; ok && current == sub {
		delete(h.subs, sub.ID)
	}
	h.mu.Unlock()
	sub.terminate(err)
}
