package port

import (
	"context"

	"github.com/tradepost/negotiation/internal/core/domain"
)

// EventHandler receives one change event. Handlers run on the feed's
// delivery goroutine and must not block.
type EventHandler func(domain.Event)

// UnsubscribeFunc tears down a subscription. It is idempotent and safe to
// call multiple times.
type UnsubscribeFunc func()

// ChangeFeed is the change-notification capability: publish row changes for
// a conversation, subscribe to a single conversation's changes. Events on
// one conversation's channel are delivered in publish order; no ordering
// holds across conversations.
type ChangeFeed interface {
	Publish(ctx context.Context, event domain.Event) error
	Subscribe(ctx context.Context, conversationID string, fn EventHandler) (UnsubscribeFunc, error)
}
