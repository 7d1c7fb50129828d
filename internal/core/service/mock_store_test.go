package service

import (
	"context"
	"sync"

	"github.com/tradepost/negotiation/internal/core/domain"
	"github.com/tradepost/negotiation/internal/port"
)

// mockStore is a mutex-guarded in-memory port.Store. The guarded writes
// mirror the SQL store's conditional-update semantics so race behavior can
// be exercised without a database.
type mockStore struct {
	mu            sync.Mutex
	conversations map[string]domain.Conversation
	messages      []domain.Message
	offers        map[string]domain.Offer
	products      map[string]domain.Product
	profiles      map[string]domain.SellerProfile
	orders        []domain.Order

	createOrderErr error // injected failure for the order path
	productErr     error // injected failure for product reads
}

func newMockStore() *mockStore {
	return &mockStore{
		conversations: make(map[string]domain.Conversation),
		offers:        make(map[string]domain.Offer),
		products:      make(map[string]domain.Product),
		profiles:      make(map[string]domain.SellerProfile),
	}
}

func (m *mockStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *mockStore) FindConversation(_ context.Context, buyerID, sellerID, productID string) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conversations {
		if c.BuyerID == buyerID && c.SellerID == sellerID && c.ProductID == productID {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockStore) CreateConversation(_ context.Context, conv *domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conv.ID] = *conv
	return nil
}

func (m *mockStore) ListConversations(_ context.Context, userID string) ([]domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Conversation
	for _, c := range m.conversations {
		if c.BuyerID == userID || c.SellerID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) TouchConversation(_ context.Context, _ string) error { return nil }

func (m *mockStore) CreateMessage(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *mockStore) ListMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockStore) CreateOffer(_ context.Context, offer *domain.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[offer.ID] = *offer
	return nil
}

func (m *mockStore) GetOffer(_ context.Context, id string) (*domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.offers[id]; ok {
		return &o, nil
	}
	return nil, nil
}

func (m *mockStore) ListOffers(_ context.Context, conversationID string) ([]domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Offer
	for _, o := range m.offers {
		if o.ConversationID == conversationID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateOfferStatus(_ context.Context, id string, from, to domain.OfferStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	m.offers[id] = o
	return true, nil
}

func (m *mockStore) MarkOfferReserved(_ context.Context, id string, quantity int, price float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok || o.Status != domain.OfferStatusAccepted || o.Reserved {
		return false, nil
	}
	o.Reserved = true
	o.ReservedQuantity = quantity
	o.ReservedPrice = price
	m.offers[id] = o
	return true, nil
}

func (m *mockStore) ClearOfferReservation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return nil
	}
	o.Reserved = false
	o.ReservedQuantity = 0
	o.ReservedPrice = 0
	m.offers[id] = o
	return nil
}

func (m *mockStore) SumReservedQuantity(_ context.Context, productID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, o := range m.offers {
		if o.ProductID == productID && o.Reserved && o.Status == domain.OfferStatusAccepted {
			total += o.ReservedQuantity
		}
	}
	return total, nil
}

func (m *mockStore) ListReservations(_ context.Context, productID string) ([]domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reservation
	for _, o := range m.offers {
		if o.ProductID == productID && o.Reserved && o.Status == domain.OfferStatusAccepted {
			out = append(out, domain.Reservation{
				OfferID:   o.ID,
				Quantity:  o.ReservedQuantity,
				Price:     o.ReservedPrice,
				CreatedAt: o.CreatedAt,
			})
		}
	}
	return out, nil
}

func (m *mockStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.productErr != nil {
		return nil, m.productErr
	}
	if p, ok := m.products[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *mockStore) GetSellerProfile(_ context.Context, sellerID string) (*domain.SellerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[sellerID]; ok {
		return &p, nil
	}
	return nil, nil
}

// CreateOrder applies the same conditional decrement contract as the SQL
// store: the insert and the stock check commit together or not at all.
func (m *mockStore) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createOrderErr != nil {
		return m.createOrderErr
	}
	p, ok := m.products[order.ProductID]
	if !ok || p.Quantity < order.Quantity {
		return domain.ErrInsufficientInventory
	}
	p.Quantity -= order.Quantity
	m.products[order.ProductID] = p
	m.orders = append(m.orders, *order)
	return nil
}

// mockFeed records published events.
type mockFeed struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *mockFeed) Publish(_ context.Context, event domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *mockFeed) Subscribe(_ context.Context, _ string, _ port.EventHandler) (port.UnsubscribeFunc, error) {
	return func() {}, nil
}

func (f *mockFeed) published(kind domain.EventKind) []domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, e := range f.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
