package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-livechat/internal/domain"
)

func TestVisitorOpenCreatesConversationWithWelcome(t *testing.T) {
	e := newEngine(t)
	rec := newRecorder()
	session := e.visitorSession("new-visitor", rec)
	defer session.Close()

	assert.Equal(t, StateClosed, session.State())
	conv, err := session.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReady, session.State())

	ev := rec.next(t, EventHistory)
	assert.Equal(t, conv.ID, ev.Conversation.ID)
	require.Len(t, ev.Messages, 1)
	assert.Equal(t, domain.SenderOperator, ev.Messages[0].SenderType)
	assert.Equal(t, "Hi! How can I help you today?", ev.Messages[0].Content)
	assert.Equal(t, ev.Messages, session.Messages())
}

func TestVisitorSendAppearsOnceAndReachesConsole(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	consoleEvents := newRecorder()
	console := e.console(consoleEvents)
	_, err := console.Load(ctx)
	require.NoError(t, err)
	defer console.Close()

	rec := newRecorder()
	session := e.visitorSession("visitor-b", rec)
	defer session.Close()
	_, err = session.Open(ctx)
	require.NoError(t, err)

	msg, err := session.Send(ctx, "When can we talk?")
	require.NoError(t, err)
	assert.Equal(t, domain.SenderVisitor, msg.SenderType)
	assert.Equal(t, 1, countContent(session.Messages(), "When can we talk?"))

	// The feed delivers the same insert again; it must not be shown twice.
	require.Eventually(t, func() bool {
		summaries := console.Summaries()
		return len(summaries) == 1 && summaries[0].UnreadCount == 1
	}, eventWait, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, countContent(session.Messages(), "When can we talk?"))

	rec.nextMessage(t, "When can we talk?")
	select {
	case ev := <-rec.ch:
		if ev.Kind == EventMessage {
			t.Fatalf("duplicate message event for %q", ev.Message.Content)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestVisitorReturnsToSameConversation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	first := e.visitorSession("returning", nil)
	conv, err := first.Open(ctx)
	require.NoError(t, err)
	_, err = first.Send(ctx, "are you there?")
	require.NoError(t, err)
	first.Close()
	assert.Equal(t, StateClosed, first.State())
	assert.Nil(t, first.Messages())

	second := e.visitorSession("returning", nil)
	defer second.Close()
	again, err := second.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	history := second.Messages()
	require.Len(t, history, 2)
	assert.Equal(t, "are you there?", history[1].Content)
}

func TestConcurrentOpensAreCoalesced(t *testing.T) {
	e := newEngine(t)
	session := e.visitorSession("eager", nil)
	defer session.Close()

	var wg sync.WaitGroup
	ids := make([]uint, 6)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := session.Open(context.Background())
			if assert.NoError(t, err) {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, e.hub.Len(), "one live subscription per session")

	var count int64
	require.NoError(t, e.db.Model(&domain.Conversation{}).Where("visitor_id = ?", "eager").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestVisitorReceivesOperatorReplies(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	rec := newRecorder()
	session := e.visitorSession("visitor-c", rec)
	defer session.Close()
	conv, err := session.Open(ctx)
	require.NoError(t, err)

	_, err = e.channel.Append(ctx, conv.ID, domain.SenderOperator, "Tomorrow at 10?")
	require.NoError(t, err)

	ev := rec.nextMessage(t, "Tomorrow at 10?")
	assert.Equal(t, domain.SenderOperator, ev.Message.SenderType)
	assert.Equal(t, 1, countContent(session.Messages(), "Tomorrow at 10?"))
}

func TestSendBeforeOpenIsAStateError(t *testing.T) {
	e := newEngine(t)
	session := e.visitorSession("visitor-d", nil)

	_, err := session.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrState)
}

func TestFailedSendRestoresDraft(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	session := e.visitorSession("visitor-e", nil)
	defer session.Close()
	conv, err := session.Open(ctx)
	require.NoError(t, err)

	session.SetDraft("please call me back")
	e.breakStore(t)

	_, err = session.Send(ctx, "please call me back")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, "please call me back", session.Draft())
	assert.Len(t, session.Messages(), 1)
	assert.Equal(t, conv.ID, session.Conversation().ID)
	assert.Equal(t, StateReady, session.State())
}

func TestSendToClosedConversationMovesToFreshOne(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	rec := newRecorder()
	session := e.visitorSession("visitor-closed", rec)
	defer session.Close()
	old, err := session.Open(ctx)
	require.NoError(t, err)
	rec.next(t, EventHistory)

	require.NoError(t, e.resolver.CloseConversation(ctx, old.ID))

	session.SetDraft("anyone there?")
	_, err = session.Send(ctx, "anyone there?")
	assert.ErrorIs(t, err, ErrState)
	assert.True(t, IsConversationClosed(err))
	assert.Equal(t, "anyone there?", session.Draft())
	assert.Equal(t, StateClosed, session.State())
	assert.Zero(t, e.hub.Len())

	ev := rec.next(t, EventConversationClosed)
	assert.Equal(t, old.ID, ev.Conversation.ID)
	assert.Equal(t, domain.ConversationClosed, ev.Conversation.Status)

	fresh, err := session.Open(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, fresh.ID)
	assert.Equal(t, domain.ConversationActive, fresh.Status)

	_, err = session.Send(ctx, "anyone there?")
	require.NoError(t, err)
	assert.Equal(t, 1, countContent(session.Messages(), "anyone there?"))
}

func TestJoiningAFailedOpenDoesNotResolveAgain(t *testing.T) {
	e := newEngine(t)
	session := e.visitorSession("visitor-late", nil)

	// A caller that captured the generation of an open which has since
	// failed must not start a second resolve under it.
	session.mu.Lock()
	session.generation++
	gen := session.generation
	session.mu.Unlock()

	_, err := session.initialize(context.Background(), gen)
	assert.ErrorIs(t, err, ErrState)

	var count int64
	require.NoError(t, e.db.Model(&domain.Conversation{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, StateClosed, session.State())
}

func TestSendClearsDraftOnSuccess(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	session := e.visitorSession("visitor-f", nil)
	defer session.Close()
	_, err := session.Open(ctx)
	require.NoError(t, err)

	session.SetDraft("hello")
	_, err = session.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Empty(t, session.Draft())
}

func TestOpenFailureLeavesSessionClosed(t *testing.T) {
	e := newEngine(t)
	e.breakStore(t)
	session := e.visitorSession("visitor-g", nil)

	_, err := session.Open(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, StateClosed, session.State())
	assert.Zero(t, e.hub.Len())
}

func TestVisitorResubscribesAfterLosingFeed(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	rec := newRecorder()
	session := e.visitorSession("visitor-h", rec)
	defer session.Close()
	conv, err := session.Open(ctx)
	require.NoError(t, err)
	rec.next(t, EventHistory)

	e.hub.Fail()
	lost := rec.next(t, EventSubscriptionLost)
	assert.ErrorIs(t, lost.Err, ErrSubscriptionLost)
	rec.next(t, EventHistory)
	require.Eventually(t, func() bool { return e.hub.Len() == 1 }, eventWait, 10*time.Millisecond)

	_, err = e.channel.Append(ctx, conv.ID, domain.SenderOperator, "back online")
	require.NoError(t, err)
	rec.nextMessage(t, "back online")
}

func TestVisitorStaysUsableWithoutResubscribe(t *testing.T) {
	config := DefaultConfig()
	config.ResubscribeOnLoss = false
	e := newEngineWith(t, config)
	ctx := context.Background()
	rec := newRecorder()
	session := e.visitorSession("visitor-i", rec)
	defer session.Close()
	conv, err := session.Open(ctx)
	require.NoError(t, err)

	e.hub.Fail()
	rec.next(t, EventSubscriptionLost)
	assert.Zero(t, e.hub.Len())
	assert.Equal(t, StateReady, session.State())

	// Missed while degraded, recovered by an explicit resubscribe.
	_, err = e.channel.Append(ctx, conv.ID, domain.SenderOperator, "missed")
	require.NoError(t, err)
	_, err = session.Send(ctx, "still here")
	require.NoError(t, err)
	assert.Equal(t, 0, countContent(session.Messages(), "missed"))

	require.NoError(t, session.Resubscribe(ctx))
	assert.Equal(t, 1, countContent(session.Messages(), "missed"))
	assert.Equal(t, 1, e.hub.Len())
}

func TestCloseReleasesSubscription(t *testing.T) {
	e := newEngine(t)
	session := e.visitorSession("visitor-j", nil)
	_, err := session.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, e.hub.Len())

	session.Close()
	session.Close()
	assert.Zero(t, e.hub.Len())
}
