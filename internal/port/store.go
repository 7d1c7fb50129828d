package port

import (
	"context"

	"github.com/tradepost/negotiation/internal/core/domain"
)

type ConversationStore interface {
	// GetConversation retrieves a conversation by id, nil when absent.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// FindConversation looks up the conversation for a buyer/seller/product
	// triple, nil when absent. productID may be empty.
	FindConversation(ctx context.Context, buyerID, sellerID, productID string) (*domain.Conversation, error)

	CreateConversation(ctx context.Context, conv *domain.Conversation) error

	// ListConversations returns every conversation the user participates in,
	// most recently updated first.
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)

	// TouchConversation bumps updated_at after any activity in the thread.
	TouchConversation(ctx context.Context, id string) error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, msg *domain.Message) error

	// ListMessages returns the conversation's messages in insertion order.
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

type OfferStore interface {
	CreateOffer(ctx context.Context, offer *domain.Offer) error

	// GetOffer retrieves an offer by id, nil when absent.
	GetOffer(ctx context.Context, id string) (*domain.Offer, error)

	// ListOffers returns the conversation's offers in insertion order.
	ListOffers(ctx context.Context, conversationID string) ([]domain.Offer, error)

	// UpdateOfferStatus performs a compare-and-swap on the offer's status,
	// returning false when the offer was no longer in the expected status.
	UpdateOfferStatus(ctx context.Context, id string, from, to domain.OfferStatus) (bool, error)

	// MarkOfferReserved sets the reservation fields, guarded so it only
	// applies to an accepted, not-yet-reserved offer. Returns false when the
	// guard did not hold.
	MarkOfferReserved(ctx context.Context, id string, quantity int, price float64) (bool, error)

	// ClearOfferReservation undoes MarkOfferReserved when the follow-on
	// order could not be committed.
	ClearOfferReservation(ctx context.Context, id string) error

	// SumReservedQuantity totals reserved_quantity across accepted, reserved
	// offers for the product.
	SumReservedQuantity(ctx context.Context, productID string) (int, error)

	// ListReservations returns the product's active reservations, newest
	// first.
	ListReservations(ctx context.Context, productID string) ([]domain.Reservation, error)
}

type ProductStore interface {
	// GetProduct retrieves a product by id, nil when absent.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// GetSellerProfile retrieves a seller's profile, nil when absent.
	GetSellerProfile(ctx context.Context, sellerID string) (*domain.SellerProfile, error)
}

type OrderStore interface {
	// CreateOrder persists the order and decrements the product's available
	// stock in one transaction. The decrement is a single conditional update
	// so the store itself rejects overdraft; returns
	// domain.ErrInsufficientInventory when the stock guard fails.
	CreateOrder(ctx context.Context, order *domain.Order) error
}

// Store is the full transactional row store capability consumed by the
// negotiation engine.
type Store interface {
	ConversationStore
	MessageStore
	OfferStore
	ProductStore
	OrderStore
}
