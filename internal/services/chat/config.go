package chat

import (
	"fmt"
	"time"
)

const DefaultWelcomeMessage = "Hi! How can I help you today?"

type Config struct {
	// Seeded as an operator message when a conversation is created. Empty
	// disables seeding.
	WelcomeMessage string

	// Upper bound on trimmed message content, in bytes.
	MaxContentLength int

	// Per-subscription delivery buffer before a slow reader is dropped.
	SubscriptionBuffer int

	// Bound on each store call made from a live-feed handler.
	StoreTimeout time.Duration

	// Sessions re-subscribe and re-merge history after losing the live feed.
	ResubscribeOnLoss bool
}

func (c *Config) Validate() error {
	if c.MaxContentLength <= 0 {
		return fmt.Errorf("max_content_length must be positive")
	}
	if c.SubscriptionBuffer <= 0 {
		return fmt.Errorf("subscription_buffer must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("store_timeout must be positive")
	}
	if len(c.WelcomeMessage) > c.MaxContentLength {
		return fmt.Errorf("welcome_message exceeds max_content_length")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		WelcomeMessage:     DefaultWelcomeMessage,
		MaxContentLength:   4000,
		SubscriptionBuffer: 64,
		StoreTimeout:       5 * time.Second,
		ResubscribeOnLoss:  true,
	}
}
