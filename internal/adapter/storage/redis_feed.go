package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tradepost/negotiation/internal/core/domain"
	"github.com/tradepost/negotiation/internal/port"
)

const conversationChannelPrefix = "conv:"

// RedisFeed implements port.ChangeFeed over Redis pub/sub with one channel
// per conversation. Redis preserves publish order per channel, which is all
// the relay promises; delivery is at-most-once per connected subscriber,
// and a subscriber that reconnects reloads the thread instead of replaying.
type RedisFeed struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisFeed(client *redis.Client, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{client: client, logger: logger}
}

func (f *RedisFeed) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	channel := conversationChannelPrefix + event.ConversationID
	if err := f.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, conversationID string, fn port.EventHandler) (port.UnsubscribeFunc, error) {
	channel := conversationChannelPrefix + conversationID
	pubsub := f.client.Subscribe(ctx, channel)

	// Force the SUBSCRIBE round trip so a failed connection surfaces here
	// instead of silently dropping events later.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.logger.Warn("malformed feed payload",
					zap.String("channel", channel), zap.Error(err))
				continue
			}
			fn(event)
		}
	}()

	return func() {
		// Closing an already-closed pubsub returns an error we deliberately
		// ignore: teardown must be callable any number of times.
		_ = pubsub.Close()
	}, nil
}
