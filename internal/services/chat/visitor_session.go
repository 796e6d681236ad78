package chat

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/iyunix/go-livechat/internal/domain"
	"github.com/iyunix/go-livechat/internal/feed"
)

type SessionState int

const (
	StateClosed SessionState = iota
	StateInitializing
	StateReady
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// VisitorSession is the widget side of a conversation for one browser.
//
// Open subscribes to the conversation before loading its history and merges
// both sources by message id, so nothing inserted between the two calls is
// lost or shown twice. Every Close bumps the generation; work started under an
// older generation is discarded when it completes.
type VisitorSession struct {
	config   *Config
	identity IdentityProvider
	resolver *ConversationResolver
	channel  *MessageChannel
	logger   Logger
	onEvent  EventHandler

	opens singleflight.Group

	// emitMu keeps event delivery in the order state changed.
	emitMu sync.Mutex

	mu           sync.Mutex
	state        SessionState
	generation   uint64
	conversation *domain.Conversation
	thread       *Thread
	sub          *feed.Subscription
	draft        string
}

func NewVisitorSession(
	config *Config,
	identity IdentityProvider,
	resolver *ConversationResolver,
	channel *MessageChannel,
	logger Logger,
	onEvent EventHandler,
) *VisitorSession {
	return &VisitorSession{
		config:   config,
		identity: identity,
		resolver: resolver,
		channel:  channel,
		logger:   logger,
		onEvent:  onEvent,
	}
}

// Open resolves the visitor's conversation, subscribes to it and loads its
// history. Calls made while an open is in flight share its result.
func (s *VisitorSession) Open(ctx context.Context) (*domain.Conversation, error) {
	s.mu.Lock()
	switch s.state {
	case StateReady:
		conv := *s.conversation
		s.mu.Unlock()
		return &conv, nil
	case StateClosed:
		s.generation++
		s.state = StateInitializing
	}
	gen := s.generation
	s.mu.Unlock()

	v, err, shared := s.opens.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return s.initialize(ctx, gen)
	})
	if shared {
		s.logger.Debug("visitor open coalesced", "generation", gen)
	}
	if err != nil {
		return nil, err
	}
	conv := v.(domain.Conversation)
	return &conv, nil
}

func (s *VisitorSession) initialize(ctx context.Context, gen uint64) (domain.Conversation, error) {
	// A caller that raced past a just-finished open joins its result.
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return domain.Conversation{}, NewStateError("open", "session closed while opening")
	}
	switch s.state {
	case StateReady:
		conv := *s.conversation
		s.mu.Unlock()
		return conv, nil
	case StateClosed:
		// The open this caller meant to join already failed.
		s.mu.Unlock()
		return domain.Conversation{}, NewStateError("open", "open failed, try again")
	}
	s.mu.Unlock()

	visitorID := s.identity.GetOrCreateVisitorID()

	conv, err := s.resolver.Resolve(ctx, visitorID)
	if err != nil {
		s.abortOpen(gen)
		return domain.Conversation{}, err
	}

	sub, err := s.channel.Subscribe(conv.ID)
	if err != nil {
		s.abortOpen(gen)
		return domain.Conversation{}, err
	}

	history, err := s.channel.List(ctx, conv.ID)
	if err != nil {
		sub.Close()
		s.abortOpen(gen)
		return domain.Conversation{}, err
	}

	s.mu.Lock()
	if s.generation != gen || s.state != StateInitializing {
		s.mu.Unlock()
		sub.Close()
		return domain.Conversation{}, NewStateError("open", "session closed while opening")
	}
	s.conversation = conv
	s.thread = NewThread()
	s.thread.Merge(history)
	s.sub = sub
	s.state = StateReady
	ev := Event{Kind: EventHistory, Conversation: conv, Messages: s.thread.Snapshot()}
	s.emitLocked(ev)

	s.logger.Info("visitor session ready", "conversation_id", conv.ID, "messages", len(ev.Messages))
	go s.pump(gen, sub)
	return *conv, nil
}

func (s *VisitorSession) abortOpen(gen uint64) {
	s.mu.Lock()
	if s.generation == gen && s.state == StateInitializing {
		s.state = StateClosed
	}
	s.mu.Unlock()
}

// pump drains one subscription into the thread. Buffered inserts that arrived
// while history was loading are merged here.
func (s *VisitorSession) pump(gen uint64, sub *feed.Subscription) {
	for msg := range sub.C() {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return
		}
		if !s.thread.Add(msg) {
			s.mu.Unlock()
			continue
		}
		m := msg
		s.emitLocked(Event{Kind: EventMessage, Conversation: s.conversation, Message: &m})
	}

	if err := sub.Err(); errors.Is(err, feed.ErrSubscriptionLost) {
		s.subscriptionLost(gen, sub, err)
	}
}

func (s *VisitorSession) subscriptionLost(gen uint64, sub *feed.Subscription, cause error) {
	s.mu.Lock()
	if s.generation != gen || s.sub != sub {
		s.mu.Unlock()
		return
	}
	s.sub = nil
	convID := s.conversation.ID
	s.emitLocked(Event{Kind: EventSubscriptionLost, Conversation: s.conversation, Err: NewSubscriptionLostError(convID, cause)})
	s.logger.Warn("visitor session lost its live feed", "conversation_id", convID)

	if !s.config.ResubscribeOnLoss {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.StoreTimeout)
	defer cancel()
	if err := s.Resubscribe(ctx); err != nil {
		s.logger.Error("visitor session resubscribe failed", "conversation_id", convID, "error", err)
		s.emit(Event{Kind: EventError, Err: err})
	}
}

// Resubscribe restores a lost live feed: it opens a new subscription, re-lists
// the history and merges whatever was missed. It is a no-op while the feed is
// healthy.
func (s *VisitorSession) Resubscribe(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return NewStateError("resubscribe", "conversation is not open")
	}
	if s.sub != nil {
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	convID := s.conversation.ID
	s.mu.Unlock()

	sub, err := s.channel.Subscribe(convID)
	if err != nil {
		return err
	}
	history, err := s.channel.List(ctx, convID)
	if err != nil {
		sub.Close()
		return err
	}

	s.mu.Lock()
	if s.generation != gen || s.sub != nil {
		s.mu.Unlock()
		sub.Close()
		return nil
	}
	s.sub = sub
	added := s.thread.Merge(history)
	s.emitLocked(Event{Kind: EventHistory, Conversation: s.conversation, Messages: s.thread.Snapshot()})

	s.logger.Info("visitor session resubscribed", "conversation_id", convID, "recovered", len(added))
	go s.pump(gen, sub)
	return nil
}

// Send appends a visitor message. The draft is cleared up front and put back
// if the append fails, so the visitor never loses what they typed.
func (s *VisitorSession) Send(ctx context.Context, content string) (*domain.Message, error) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return nil, NewStateError("send", "conversation is not open")
	}
	gen := s.generation
	convID := s.conversation.ID
	s.draft = ""
	s.mu.Unlock()

	msg, err := s.channel.Append(ctx, convID, domain.SenderVisitor, content)
	if IsConversationClosed(err) {
		s.retire(gen, content)
		return nil, err
	}
	if err != nil {
		s.mu.Lock()
		if s.generation == gen && s.draft == "" {
			s.draft = content
		}
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	if s.generation != gen || !s.thread.Add(*msg) {
		s.mu.Unlock()
		return msg, nil
	}
	m := *msg
	s.emitLocked(Event{Kind: EventMessage, Conversation: s.conversation, Message: &m})
	return msg, nil
}

// retire drops a conversation an operator closed and returns the session to
// Closed, so the next Open resolves a fresh conversation. The unsent content
// stays in the draft.
func (s *VisitorSession) retire(gen uint64, content string) {
	s.mu.Lock()
	if s.generation != gen || s.state != StateReady {
		s.mu.Unlock()
		return
	}
	if s.draft == "" {
		s.draft = content
	}
	s.generation++
	s.state = StateClosed
	sub := s.sub
	s.sub = nil
	conv := *s.conversation
	conv.Status = domain.ConversationClosed
	s.conversation = nil
	s.thread = nil
	s.logger.Info("visitor conversation was closed", "conversation_id", conv.ID)
	s.emitLocked(Event{Kind: EventConversationClosed, Conversation: &conv})

	if sub != nil {
		sub.Close()
	}
}

// Close collapses the widget and releases the live subscription. Opens and
// sends still in flight complete against the store but no longer touch the
// session.
func (s *VisitorSession) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.state = StateClosed
	sub := s.sub
	s.sub = nil
	s.conversation = nil
	s.thread = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

func (s *VisitorSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conversation returns a copy of the open conversation, or nil.
func (s *VisitorSession) Conversation() *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversation == nil {
		return nil
	}
	conv := *s.conversation
	return &conv
}

// Messages returns the visible history, or nil while the widget is not ready.
func (s *VisitorSession) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thread == nil {
		return nil
	}
	return s.thread.Snapshot()
}

func (s *VisitorSession) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

func (s *VisitorSession) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// emitLocked hands ev to the handler after releasing s.mu, holding emitMu
// across the switch so events leave in the order the state changed.
func (s *VisitorSession) emitLocked(ev Event) {
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

func (s *VisitorSession) emit(ev Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
