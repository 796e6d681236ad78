package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iyunix/go-livechat/internal/domain"
	"github.com/iyunix/go-livechat/internal/feed"
	"github.com/iyunix/go-livechat/internal/repository/conversation"
	"github.com/iyunix/go-livechat/internal/repository/message"
	"github.com/iyunix/go-livechat/internal/testutil"
)

const eventWait = 2 * time.Second

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

type fixedIdentity string

func (f fixedIdentity) GetOrCreateVisitorID() string { return string(f) }

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, domain.Message) error {
	return errors.New("feed offline")
}

var operatorSignedIn = AuthenticatorFunc(func(context.Context) bool { return true })

type engine struct {
	db       *gorm.DB
	config   *Config
	hub      *feed.Hub
	resolver *ConversationResolver
	channel  *MessageChannel
	tracker  *ReadStateTracker
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	return newEngineWith(t, DefaultConfig())
}

func newEngineWith(t *testing.T, config *Config) *engine {
	t.Helper()
	require.NoError(t, config.Validate())

	db := testutil.NewTestDB(t)
	hub := feed.NewHub(config.SubscriptionBuffer, nopLogger{})
	msgRepo := message.NewMessageRepository(db)
	return &engine{
		db:       db,
		config:   config,
		hub:      hub,
		resolver: NewConversationResolver(config, conversation.NewConversationRepository(db), hub, nopLogger{}),
		channel:  NewMessageChannel(config, msgRepo, hub, hub, nopLogger{}),
		tracker:  NewReadStateTracker(msgRepo, nopLogger{}),
	}
}

// breakStore closes the underlying connection pool so every later store call
// fails.
func (e *engine) breakStore(t *testing.T) {
	t.Helper()
	sqlDB, err := e.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func (e *engine) visitorSession(visitorID string, rec *recorder) *VisitorSession {
	var handler EventHandler
	if rec != nil {
		handler = rec.handle
	}
	return NewVisitorSession(e.config, fixedIdentity(visitorID), e.resolver, e.channel, nopLogger{}, handler)
}

func (e *engine) console(rec *recorder) *OperatorConsole {
	var handler EventHandler
	if rec != nil {
		handler = rec.handle
	}
	return NewOperatorConsole(e.config, operatorSignedIn, e.resolver, e.channel, e.tracker, nopLogger{}, handler)
}

// recorder collects session events for assertions.
type recorder struct {
	ch chan Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Event, 256)}
}

func (r *recorder) handle(ev Event) { r.ch <- ev }

// next waits for the next event of the given kind, skipping others.
func (r *recorder) next(t *testing.T, kind EventKind) Event {
	t.Helper()
	deadline := time.After(eventWait)
	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
			return Event{}
		}
	}
}

// nextMessage waits for a message event carrying the given content.
func (r *recorder) nextMessage(t *testing.T, content string) Event {
	t.Helper()
	deadline := time.After(eventWait)
	for {
		select {
		case ev := <-r.ch:
			if ev.Kind == EventMessage && ev.Message != nil && ev.Message.Content == content {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for message %q", content)
			return Event{}
		}
	}
}

func countContent(msgs []domain.Message, content string) int {
	n := 0
	for _, m := range msgs {
		if m.Content == content {
			n++
		}
	}
	return n
}
