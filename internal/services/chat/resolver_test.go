package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-livechat/internal/domain"
)

func TestResolveCreatesConversationWithWelcomeMessage(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	conv, err := e.resolver.Resolve(ctx, "visitor-a")
	require.NoError(t, err)
	assert.NotZero(t, conv.ID)
	assert.Equal(t, "visitor-a", conv.VisitorID)
	assert.Equal(t, domain.ConversationActive, conv.Status)

	history, err := e.channel.List(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.SenderOperator, history[0].SenderType)
	assert.Equal(t, DefaultWelcomeMessage, history[0].Content)
}

func TestResolveReturnsSameConversationForSameVisitor(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	first, err := e.resolver.Resolve(ctx, "visitor-a")
	require.NoError(t, err)
	second, err := e.resolver.Resolve(ctx, "visitor-a")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := e.resolver.Resolve(ctx, "visitor-b")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	history, err := e.channel.List(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "welcome message is seeded once")
}

func TestConcurrentResolvesConvergeOnOneConversation(t *testing.T) {
	e := newEngine(t)

	const callers = 8
	ids := make([]uint, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := e.resolver.Resolve(context.Background(), "racing-visitor")
			errs[i] = err
			if conv != nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var active int64
	require.NoError(t, e.db.Model(&domain.Conversation{}).
		Where("visitor_id = ? AND status = ?", "racing-visitor", domain.ConversationActive).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)
}

func TestResolveRejectsBlankVisitor(t *testing.T) {
	e := newEngine(t)

	_, err := e.resolver.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResolveWithoutWelcomeMessage(t *testing.T) {
	config := DefaultConfig()
	config.WelcomeMessage = ""
	e := newEngineWith(t, config)
	ctx := context.Background()

	conv, err := e.resolver.Resolve(ctx, "visitor-a")
	require.NoError(t, err)
	history, err := e.channel.List(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCloseConversationStartsFreshOnNextResolve(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	first, err := e.resolver.Resolve(ctx, "visitor-a")
	require.NoError(t, err)
	require.NoError(t, e.resolver.CloseConversation(ctx, first.ID))
	require.NoError(t, e.resolver.CloseConversation(ctx, first.ID), "closing twice is a no-op")

	closed, err := e.resolver.Lookup(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationClosed, closed.Status)

	second, err := e.resolver.Resolve(ctx, "visitor-a")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestLookupAndCloseUnknownConversation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.resolver.Lookup(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, e.resolver.CloseConversation(ctx, 404), ErrNotFound)
}

func TestResolveSurfacesStoreUnavailable(t *testing.T) {
	e := newEngine(t)
	e.breakStore(t)

	_, err := e.resolver.Resolve(context.Background(), "visitor-a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestActiveDoesNotCreate(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.resolver.Active(ctx, "visitor-a")
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := e.resolver.Resolve(ctx, "visitor-a")
	require.NoError(t, err)
	active, err := e.resolver.Active(ctx, "visitor-a")
	require.NoError(t, err)
	assert.Equal(t, created.ID, active.ID)
}
