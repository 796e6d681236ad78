package chat

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// summaryFanout bounds concurrent per-conversation lookups.
const summaryFanout = 8

// LoadSummaries lists every conversation, most recently updated first, with
// its last message and unread count. The two lookups per conversation are
// independent reads and may be slightly out of step with each other.
func LoadSummaries(ctx context.Context, resolver *ConversationResolver, channel *MessageChannel, tracker *ReadStateTracker) ([]ConversationSummary, error) {
	convs, err := resolver.ListRecent(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, len(convs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryFanout)
	for i := range convs {
		i := i
		summaries[i].Conversation = convs[i]
		g.Go(func() error {
			latest, err := channel.Latest(gctx, convs[i].ID)
			if err != nil {
				return err
			}
			unread, err := tracker.CountUnread(gctx, convs[i].ID)
			if err != nil {
				return err
			}
			summaries[i].LastMessage = latest
			summaries[i].UnreadCount = unread
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
