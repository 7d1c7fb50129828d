package domain

import "time"

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Counterpart returns the other side of the negotiation.
func (r Role) Counterpart() Role {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

// Conversation groups the messages and offers exchanged between one buyer
// and one seller about one product. ProductID may be empty for general
// contact threads that are not bound to a listing.
type Conversation struct {
	ID        string    `json:"id"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	ProductID string    `json:"product_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleOf maps a participant id to its role in the conversation, or "" when
// the id is not a participant.
func (c *Conversation) RoleOf(userID string) Role {
	switch userID {
	case c.BuyerID:
		return RoleBuyer
	case c.SellerID:
		return RoleSeller
	}
	return ""
}
