package domain

import "time"

type OfferStatus string

const (
	OfferStatusPending   OfferStatus = "pending"
	OfferStatusAccepted  OfferStatus = "accepted"
	OfferStatusRejected  OfferStatus = "rejected"
	OfferStatusWithdrawn OfferStatus = "withdrawn"
)

// Terminal reports whether no further status transition is possible.
func (s OfferStatus) Terminal() bool {
	return s != OfferStatusPending
}

// Offer is a proposed price bound to a conversation. It moves through a
// small state machine: pending is the only non-terminal status, and an
// accepted offer may additionally carry a reservation against the product's
// inventory. Reserved implies Status == accepted.
type Offer struct {
	ID               string      `json:"id"`
	ConversationID   string      `json:"conversation_id"`
	ProductID        string      `json:"product_id,omitempty"`
	MadeBy           Role        `json:"made_by"`
	Price            float64     `json:"price"`
	Note             string      `json:"note,omitempty"`
	Status           OfferStatus `json:"status"`
	Reserved         bool        `json:"reserved,omitempty"`
	ReservedQuantity int         `json:"reserved_quantity,omitempty"`
	ReservedPrice    float64     `json:"reserved_price,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Reservation is one committed slice of a product's inventory, derived from
// an accepted offer with reserved=true.
type Reservation struct {
	OfferID   string    `json:"offer_id"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}
