// Package relay dispatches conversation-scoped change notifications to
// typed local handlers: message inserts, offer inserts and offer updates.
package relay

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tradepost/negotiation/internal/core/domain"
	"github.com/tradepost/negotiation/internal/port"
)

// Handlers are the caller-supplied callbacks for one subscription. Nil
// handlers are skipped. Events arrive in the order the feed emits them for
// the conversation; the relay performs no deduplication, so handlers must
// be idempotent with respect to row identity.
type Handlers struct {
	OnMessageInsert func(domain.Message)
	OnOfferInsert   func(domain.Offer)
	OnOfferUpdate   func(domain.Offer)
}

type Relay struct {
	feed   port.ChangeFeed
	logger *zap.Logger
}

func New(feed port.ChangeFeed, logger *zap.Logger) *Relay {
	return &Relay{feed: feed, logger: logger}
}

// Subscribe opens one channel scoped to the conversation and dispatches its
// events to the handlers. The returned teardown function is idempotent and
// swallows errors from an already-closed channel.
func (r *Relay) Subscribe(ctx context.Context, conversationID string, h Handlers) (port.UnsubscribeFunc, error) {
	unsubscribe, err := r.feed.Subscribe(ctx, conversationID, func(event domain.Event) {
		r.dispatch(conversationID, event, h)
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("subscribed", zap.String("conversation_id", conversationID))

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			r.logger.Debug("unsubscribed", zap.String("conversation_id", conversationID))
		})
	}, nil
}

func (r *Relay) dispatch(conversationID string, event domain.Event, h Handlers) {
	// The feed filters by conversation; a mismatched event means a feed bug,
	// so drop it rather than leak it across threads.
	if event.ConversationID != conversationID {
		r.logger.Warn("dropping event for foreign conversation",
			zap.String("want", conversationID),
			zap.String("got", event.ConversationID))
		return
	}

	switch event.Kind {
	case domain.EventMessageInsert:
		if event.Message != nil && h.OnMessageInsert != nil {
			h.OnMessageInsert(*event.Message)
		}
	case domain.EventOfferInsert:
		if event.Offer != nil && h.OnOfferInsert != nil {
			h.OnOfferInsert(*event.Offer)
		}
	case domain.EventOfferUpdate:
		if event.Offer != nil && h.OnOfferUpdate != nil {
			h.OnOfferUpdate(*event.Offer)
		}
	default:
		r.logger.Warn("unknown event kind", zap.String("kind", string(event.Kind)))
	}
}
