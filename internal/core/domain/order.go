package domain

import "time"

const DefaultCurrency = "EUR"

// Order is the terminal artifact of a successful reservation. It references
// a conversation and product but is owned by neither; it is append-only
// history and never mutated after creation.
type Order struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	BuyerID        string    `json:"buyer_id"`
	SellerID       string    `json:"seller_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Quantity       int       `json:"quantity"`
	TotalPrice     float64   `json:"total_price"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"created_at"`
}
