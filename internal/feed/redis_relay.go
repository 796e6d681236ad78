package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iyunix/go-livechat/internal/domain"
)

const DefaultRedisChannel = "livechat:messages"

// RedisRelay shares inserted messages between server instances. Notify
// publishes to a Redis channel; Run re-publishes everything received on that
// channel into the local Hub, including this instance's own inserts, so local
// subscribers see one delivery per message.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  Logger

	// RetryDelay is the pause between reconnect attempts.
	RetryDelay time.Duration
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisRelay{client: client, channel: channel, hub: hub, logger: logger, RetryDelay: time.Second}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (r *RedisRelay) Notify(ctx context.Context, msg domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message %d: %w", msg.ID, err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish message %d: %w", msg.ID, err)
	}
	return nil
}

// subscribe opens the Redis subscription and waits for the server to confirm it.
func (r *RedisRelay) subscribe(ctx context.Context) (*redis.PubSub, error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	return pubsub, nil
}

// Run pumps messages from Redis into the hub until ctx is cancelled. ready, if
// non-nil, is closed once the subscription is confirmed. Whenever the Redis
// connection drops, every local subscription is failed with
// ErrSubscriptionLost (inserts published meanwhile are not replayed) and the
// relay reconnects after RetryDelay.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub, err := r.subscribe(ctx)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	if ready != nil {
		close(ready)
	}
	r.logger.Info("redis relay subscribed", "channel", r.channel)

	for {
		received, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("redis relay lost its subscription", "channel", r.channel, "error", err)
			r.hub.Fail()
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.RetryDelay):
			}
			continue
		}

		var msg domain.Message
		if err := json.Unmarshal([]byte(received.Payload), &msg); err != nil {
			r.logger.Warn("dropping undecodable relay payload", "error", err)
			continue
		}
		r.hub.Publish(msg)
	}
}
