package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradepost/negotiation/internal/core/domain"
	"github.com/tradepost/negotiation/internal/port"
)

// Thread is everything a client needs to render one conversation.
type Thread struct {
	Conversation domain.Conversation     `json:"conversation"`
	Messages     []domain.Message        `json:"messages"`
	Offers       []domain.Offer          `json:"offers"`
	Product      *domain.ProductSnapshot `json:"product,omitempty"`
}

type ChatService struct {
	store    port.Store
	feed     port.ChangeFeed
	snapshot *SnapshotService
	logger   *zap.Logger
}

func NewChatService(store port.Store, feed port.ChangeFeed, snapshot *SnapshotService, logger *zap.Logger) *ChatService {
	return &ChatService{
		store:    store,
		feed:     feed,
		snapshot: snapshot,
		logger:   logger,
	}
}

// OpenOrCreateConversation returns the existing conversation for the
// buyer/seller/product triple or creates a new one.
func (s *ChatService) OpenOrCreateConversation(ctx context.Context, buyerID, sellerID, productID string) (*domain.Conversation, error) {
	if buyerID == "" || sellerID == "" {
		return nil, fmt.Errorf("%w: buyer and seller are required", domain.ErrValidation)
	}
	if buyerID == sellerID {
		return nil, fmt.Errorf("%w: buyer and seller must differ", domain.ErrValidation)
	}

	existing, err := s.store.FindConversation(ctx, buyerID, sellerID, productID)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		BuyerID:   buyerID,
		SellerID:  sellerID,
		ProductID: productID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// SendMessage appends an immutable message to the conversation, bumps the
// thread's updated_at and publishes a message-insert event.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID, body string) (*domain.Message, error) {
	if body == "" {
		return nil, fmt.Errorf("%w: empty message body", domain.ErrValidation)
	}

	conv, role, err := s.memberOf(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		AuthorRole:     role,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	if err := s.store.TouchConversation(ctx, conv.ID); err != nil {
		s.logger.Warn("touch conversation failed", zap.String("conversation_id", conv.ID), zap.Error(err))
	}
	s.publish(ctx, domain.Event{
		Kind:           domain.EventMessageInsert,
		ConversationID: conv.ID,
		Message:        msg,
	})

	return msg, nil
}

// LoadThread loads the conversation with its messages, offers and product
// snapshot. The caller must be a participant.
func (s *ChatService) LoadThread(ctx context.Context, conversationID, callerID string) (*Thread, error) {
	conv, _, err := s.memberOf(ctx, conversationID, callerID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	offers, err := s.store.ListOffers(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}

	thread := &Thread{
		Conversation: *conv,
		Messages:     msgs,
		Offers:       offers,
	}
	if conv.ProductID != "" {
		thread.Product = s.snapshot.Snapshot(ctx, conv.ProductID)
	}
	return thread, nil
}

func (s *ChatService) ListMessages(ctx context.Context, conversationID, callerID string) ([]domain.Message, error) {
	conv, _, err := s.memberOf(ctx, conversationID, callerID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (s *ChatService) ListOffers(ctx context.Context, conversationID, callerID string) ([]domain.Offer, error) {
	conv, _, err := s.memberOf(ctx, conversationID, callerID)
	if err != nil {
		return nil, err
	}
	offers, err := s.store.ListOffers(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	return offers, nil
}

// EnsureParticipant verifies the user belongs to the conversation and
// returns their role.
func (s *ChatService) EnsureParticipant(ctx context.Context, conversationID, userID string) (domain.Role, error) {
	_, role, err := s.memberOf(ctx, conversationID, userID)
	return role, err
}

func (s *ChatService) memberOf(ctx context.Context, conversationID, userID string) (*domain.Conversation, domain.Role, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, "", fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, "", fmt.Errorf("%w: conversation %s", domain.ErrNotFound, conversationID)
	}
	role := conv.RoleOf(userID)
	if role == "" {
		return nil, "", fmt.Errorf("%w: not a participant of conversation %s", domain.ErrNotAuthorized, conversationID)
	}
	return conv, role, nil
}

// publish pushes a change event; delivery failures are logged, never
// surfaced, since a subscriber can recover by reloading the thread.
func (s *ChatService) publish(ctx context.Context, event domain.Event) {
	if err := s.feed.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("kind", string(event.Kind)),
			zap.String("conversation_id", event.ConversationID),
			zap.Error(err))
	}
}
