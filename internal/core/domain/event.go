package domain

type EventKind string

const (
	EventMessageInsert EventKind = "message-insert"
	EventOfferInsert   EventKind = "offer-insert"
	EventOfferUpdate   EventKind = "offer-update"
)

// Event is the typed change notification pushed to subscribers of a
// conversation. Exactly one of Message or Offer is set, matching Kind.
// Delivery may redeliver the same logical change; consumers must be
// idempotent with respect to row identity.
type Event struct {
	Kind           EventKind `json:"kind"`
	ConversationID string    `json:"conversation_id"`
	Message        *Message  `json:"message,omitempty"`
	Offer          *Offer    `json:"offer,omitempty"`
}
