package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/iyunix/go-livechat/internal/domain"
	"github.com/iyunix/go-livechat/internal/feed"
)

// OperatorConsole is the dashboard side: one live subscription across every
// conversation, a summary list kept current as inserts arrive, and at most one
// selected conversation whose thread is shown in full.
//
// Summary refreshes triggered by the feed run on a separate worker and are
// coalesced, so a burst of inserts costs one reload rather than one each.
type OperatorConsole struct {
	config    *Config
	auth      Authenticator
	resolver  *ConversationResolver
	channel   *MessageChannel
	readState *ReadStateTracker
	logger    Logger
	onEvent   EventHandler

	emitMu sync.Mutex

	mu         sync.Mutex
	loaded     bool
	generation uint64
	sub        *feed.Subscription
	stop       context.CancelFunc
	refreshCh  chan struct{}

	summaries   []ConversationSummary
	refreshSeq  uint64
	appliedSeq  uint64
	selected    *domain.Conversation
	selectSeq   uint64
	thread      *Thread
	pendingRead uint
	draft       string
}

func NewOperatorConsole(
	config *Config,
	auth Authenticator,
	resolver *ConversationResolver,
	channel *MessageChannel,
	readState *ReadStateTracker,
	logger Logger,
	onEvent EventHandler,
) *OperatorConsole {
	return &OperatorConsole{
		config:    config,
		auth:      auth,
		resolver:  resolver,
		channel:   channel,
		readState: readState,
		logger:    logger,
		onEvent:   onEvent,
	}
}

// Load gates on operator authentication, opens the global subscription and
// fetches the conversation summaries. Loading an already loaded console just
// refreshes it.
func (c *OperatorConsole) Load(ctx context.Context) ([]ConversationSummary, error) {
	if c.auth == nil || !c.auth.IsOperatorAuthenticated(ctx) {
		return nil, NewUnauthorizedError("load_console")
	}

	c.mu.Lock()
	if c.loaded {
		c.mu.Unlock()
		return c.Refresh(ctx)
	}
	c.mu.Unlock()

	sub := c.channel.SubscribeAll()
	summaries, err := LoadSummaries(ctx, c.resolver, c.channel, c.readState)
	if err != nil {
		sub.Close()
		return nil, err
	}

	workerCtx, stop := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.loaded {
		c.mu.Unlock()
		stop()
		sub.Close()
		return c.Summaries(), nil
	}
	c.loaded = true
	c.generation++
	gen := c.generation
	c.sub = sub
	c.stop = stop
	c.refreshCh = make(chan struct{}, 1)
	c.summaries = summaries
	refreshCh := c.refreshCh
	c.emitLocked(Event{Kind: EventConversations, Summaries: copySummaries(summaries)})

	c.logger.Info("operator console loaded", "conversations", len(summaries))
	go c.pump(gen, sub)
	go c.refresher(workerCtx, gen, refreshCh)
	return copySummaries(summaries), nil
}

// Refresh reloads the conversation summaries. When two refreshes overlap the
// one that started later wins.
func (c *OperatorConsole) Refresh(ctx context.Context) ([]ConversationSummary, error) {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return nil, NewStateError("refresh", "console is not loaded")
	}
	gen := c.generation
	c.refreshSeq++
	seq := c.refreshSeq
	c.mu.Unlock()

	summaries, err := LoadSummaries(ctx, c.resolver, c.channel, c.readState)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation != gen || seq < c.appliedSeq {
		c.mu.Unlock()
		return copySummaries(summaries), nil
	}
	c.appliedSeq = seq
	c.summaries = summaries
	c.emitLocked(Event{Kind: EventConversations, Summaries: copySummaries(summaries)})
	return copySummaries(summaries), nil
}

// Select shows one conversation: the thread is attached before history is
// listed so live inserts racing the load are merged, then every unread
// visitor message is marked read.
func (c *OperatorConsole) Select(ctx context.Context, conversationID uint) ([]domain.Message, error) {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return nil, NewStateError("select", "console is not loaded")
	}
	c.mu.Unlock()

	conv, err := c.resolver.Lookup(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.selectSeq++
	seq := c.selectSeq
	c.selected = conv
	c.thread = NewThread()
	c.draft = ""
	c.mu.Unlock()

	history, err := c.channel.List(ctx, conversationID)
	if err != nil {
		c.clearSelection(seq)
		return nil, err
	}

	c.mu.Lock()
	if c.selectSeq != seq {
		c.mu.Unlock()
		return nil, NewStateError("select", "selection changed while loading")
	}
	c.thread.Merge(history)
	c.mu.Unlock()

	_, readAt, readErr := c.readState.MarkConversationRead(ctx, conversationID)

	c.mu.Lock()
	if c.selectSeq != seq {
		c.mu.Unlock()
		return nil, NewStateError("select", "selection changed while loading")
	}
	if readErr == nil {
		c.thread.MarkRead(readAt)
	}
	snapshot := c.thread.Snapshot()
	c.requestRefresh()
	c.emitLocked(Event{Kind: EventHistory, Conversation: conv, Messages: snapshot})

	if readErr != nil {
		return snapshot, readErr
	}
	return snapshot, nil
}

// Deselect stops following the selected conversation.
func (c *OperatorConsole) Deselect() {
	c.mu.Lock()
	c.selectSeq++
	c.selected = nil
	c.thread = nil
	c.pendingRead = 0
	c.draft = ""
	c.mu.Unlock()
}

func (c *OperatorConsole) clearSelection(seq uint64) {
	c.mu.Lock()
	if c.selectSeq == seq {
		c.selected = nil
		c.thread = nil
	}
	c.mu.Unlock()
}

// Send replies in the selected conversation as the operator. On failure the
// content is put back as the draft.
func (c *OperatorConsole) Send(ctx context.Context, content string) (*domain.Message, error) {
	c.mu.Lock()
	if c.selected == nil {
		c.mu.Unlock()
		return nil, NewStateError("send", "no conversation selected")
	}
	seq := c.selectSeq
	convID := c.selected.ID
	c.draft = ""
	c.mu.Unlock()

	msg, err := c.channel.Append(ctx, convID, domain.SenderOperator, content)
	if err != nil {
		c.mu.Lock()
		if c.selectSeq == seq && c.draft == "" {
			c.draft = content
		}
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	if c.selectSeq != seq || !c.thread.Add(*msg) {
		c.mu.Unlock()
		return msg, nil
	}
	m := *msg
	c.emitLocked(Event{Kind: EventMessage, Conversation: c.selected, Message: &m})
	return msg, nil
}

// CloseConversation closes any conversation, selected or not.
func (c *OperatorConsole) CloseConversation(ctx context.Context, conversationID uint) error {
	if err := c.resolver.CloseConversation(ctx, conversationID); err != nil {
		return err
	}

	c.mu.Lock()
	if c.selected != nil && c.selected.ID == conversationID {
		closed := *c.selected
		closed.Status = domain.ConversationClosed
		c.selected = &closed
	}
	c.requestRefresh()
	c.mu.Unlock()
	return nil
}

// Close releases the global subscription and stops the refresh worker.
func (c *OperatorConsole) Close() {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return
	}
	c.loaded = false
	c.generation++
	sub, stop := c.sub, c.stop
	c.sub, c.stop = nil, nil
	c.selectSeq++
	c.selected = nil
	c.thread = nil
	c.summaries = nil
	c.mu.Unlock()

	stop()
	if sub != nil {
		sub.Close()
	}
}

func (c *OperatorConsole) pump(gen uint64, sub *feed.Subscription) {
	for msg := range sub.C() {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		c.requestRefresh()
		if c.selected == nil || c.selected.ID != msg.ConversationID || !c.thread.Add(msg) {
			c.mu.Unlock()
			continue
		}
		if msg.IsUnread() {
			c.pendingRead = msg.ConversationID
		}
		m := msg
		c.emitLocked(Event{Kind: EventMessage, Conversation: c.selected, Message: &m})
	}

	if err := sub.Err(); errors.Is(err, feed.ErrSubscriptionLost) {
		c.subscriptionLost(gen, sub, err)
	}
}

func (c *OperatorConsole) subscriptionLost(gen uint64, sub *feed.Subscription, cause error) {
	c.mu.Lock()
	if c.generation != gen || c.sub != sub {
		c.mu.Unlock()
		return
	}
	c.sub = nil
	c.emitLocked(Event{Kind: EventSubscriptionLost, Err: NewSubscriptionLostError(0, cause)})
	c.logger.Warn("operator console lost its live feed")

	if !c.config.ResubscribeOnLoss {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.config.StoreTimeout)
	defer cancel()
	if err := c.Resubscribe(ctx); err != nil {
		c.logger.Error("operator console resubscribe failed", "error", err)
		c.emit(Event{Kind: EventError, Err: err})
	}
}

// Resubscribe reopens a lost global feed, re-merges the selected thread and
// reloads the summaries. It is a no-op while the feed is healthy.
func (c *OperatorConsole) Resubscribe(ctx context.Context) error {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		return NewStateError("resubscribe", "console is not loaded")
	}
	if c.sub != nil {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation
	c.mu.Unlock()

	sub := c.channel.SubscribeAll()

	c.mu.Lock()
	if c.generation != gen || c.sub != nil {
		c.mu.Unlock()
		sub.Close()
		return nil
	}
	c.sub = sub
	var selectedID uint
	if c.selected != nil {
		selectedID = c.selected.ID
	}
	seq := c.selectSeq
	c.mu.Unlock()
	go c.pump(gen, sub)

	if selectedID != 0 {
		history, err := c.channel.List(ctx, selectedID)
		if err != nil {
			return err
		}
		c.mu.Lock()
		if c.selectSeq == seq && c.thread != nil {
			if added := c.thread.Merge(history); len(added) > 0 {
				c.pendingRead = selectedID
			}
			c.emitLocked(Event{Kind: EventHistory, Conversation: c.selected, Messages: c.thread.Snapshot()})
		} else {
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	c.requestRefresh()
	c.mu.Unlock()
	c.logger.Info("operator console resubscribed")
	return nil
}

// requestRefresh wakes the refresher without blocking. Callers hold c.mu.
func (c *OperatorConsole) requestRefresh() {
	if c.refreshCh == nil {
		return
	}
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// refresher marks live-delivered visitor messages in the selected thread as
// read and reloads summaries, one pass per wake-up.
func (c *OperatorConsole) refresher(ctx context.Context, gen uint64, wake <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
		}

		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return
		}
		pending := c.pendingRead
		c.pendingRead = 0
		seq := c.selectSeq
		c.mu.Unlock()

		opCtx, cancel := context.WithTimeout(ctx, c.config.StoreTimeout)
		if pending != 0 {
			if marked, readAt, err := c.readState.MarkConversationRead(opCtx, pending); err != nil {
				c.logger.Warn("live read receipt failed", "conversation_id", pending, "error", err)
			} else {
				c.mu.Lock()
				if marked > 0 && c.generation == gen && c.selectSeq == seq && c.thread != nil {
					c.thread.MarkRead(readAt)
					c.emitLocked(Event{Kind: EventHistory, Conversation: c.selected, Messages: c.thread.Snapshot()})
				} else {
					c.mu.Unlock()
				}
			}
		}
		if _, err := c.Refresh(opCtx); err != nil && ctx.Err() == nil {
			c.logger.Warn("conversation summary refresh failed", "error", err)
			c.emit(Event{Kind: EventError, Err: err})
		}
		cancel()
	}
}

func (c *OperatorConsole) Summaries() []ConversationSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySummaries(c.summaries)
}

// Selected returns a copy of the selected conversation, or nil.
func (c *OperatorConsole) Selected() *domain.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return nil
	}
	conv := *c.selected
	return &conv
}

// Messages returns the selected thread, or nil when nothing is selected.
func (c *OperatorConsole) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.thread == nil {
		return nil
	}
	return c.thread.Snapshot()
}

func (c *OperatorConsole) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

func (c *OperatorConsole) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *OperatorConsole) emitLocked(ev Event) {
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

func (c *OperatorConsole) emit(ev Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

func copySummaries(in []ConversationSummary) []ConversationSummary {
	if in == nil {
		return nil
	}
	out := make([]ConversationSummary, len(in))
	copy(out, in)
	return out
}
