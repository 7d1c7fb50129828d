package domain

import "time"

// Message is an immutable chat line inside a conversation. Once created it
// is never mutated or deleted by this subsystem.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	AuthorRole     Role      `json:"author_role"`
	OfferID        string    `json:"offer_id,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}
