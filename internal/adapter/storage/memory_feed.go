package storage

import (
	"context"
	"sync"

	"github.com/tradepost/negotiation/internal/core/domain"
	"github.com/tradepost/negotiation/internal/port"
)

// MemoryFeed is an in-process port.ChangeFeed: handlers are invoked
// synchronously in publish order. It backs single-node deployments without
// Redis and the in-memory fakes used in tests.
type MemoryFeed struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]port.EventHandler // conversation id -> subscriber id -> handler
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{handlers: make(map[string]map[int]port.EventHandler)}
}

func (f *MemoryFeed) Publish(_ context.Context, event domain.Event) error {
	f.mu.Lock()
	subs := make([]port.EventHandler, 0, len(f.handlers[event.ConversationID]))
	for _, fn := range f.handlers[event.ConversationID] {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
	return nil
}

func (f *MemoryFeed) Subscribe(_ context.Context, conversationID string, fn port.EventHandler) (port.UnsubscribeFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	if f.handlers[conversationID] == nil {
		f.handlers[conversationID] = make(map[int]port.EventHandler)
	}
	f.handlers[conversationID][id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers[conversationID], id)
	}, nil
}
