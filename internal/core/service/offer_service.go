package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/tradepost/negotiation/internal/core/domain"
	"github.com/tradepost/negotiation/internal/port"
)

// transitionAction names a guarded operation of the offer state machine.
type transitionAction string

const (
	actionAccept   transitionAction = "accept"
	actionReject   transitionAction = "reject"
	actionWithdraw transitionAction = "withdraw"
	actionReserve  transitionAction = "reserve"
)

// authorizeTransition is the single authorization policy for the offer
// ledger. Accept and reject belong to the counterparty of the offer's
// author, withdraw to the author, reserve to the seller.
func authorizeTransition(action transitionAction, offer *domain.Offer, caller domain.Role) error {
	var allowed domain.Role
	switch action {
	case actionAccept, actionReject:
		allowed = offer.MadeBy.Counterpart()
	case actionWithdraw:
		allowed = offer.MadeBy
	case actionReserve:
		allowed = domain.RoleSeller
	}
	if caller != allowed {
		return fmt.Errorf("%w: %s may not %s this offer", domain.ErrNotAuthorized, caller, action)
	}
	return nil
}

type OfferService struct {
	store  port.Store
	feed   port.ChangeFeed
	orders *OrderService
	logger *zap.Logger
}

func NewOfferService(store port.Store, feed port.ChangeFeed, orders *OrderService, logger *zap.Logger) *OfferService {
	return &OfferService{
		store:  store,
		feed:   feed,
		orders: orders,
		logger: logger,
	}
}

// Create opens a new pending offer in the conversation. The product id is
// resolved from the conversation rather than trusted from the caller, and a
// companion message describing the offer is appended to the thread.
func (s *OfferService) Create(ctx context.Context, conversationID, callerID string, price float64, note string) (*domain.Offer, error) {
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", domain.ErrValidation)
	}

	conv, role, err := s.memberOf(ctx, conversationID, callerID)
	if err != nil {
		return nil, err
	}

	offer := &domain.Offer{
		ID:             ulid.Make().String(),
		ConversationID: conv.ID,
		ProductID:      conv.ProductID,
		MadeBy:         role,
		Price:          price,
		Note:           note,
		Status:         domain.OfferStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}

	body := fmt.Sprintf("Offer: %.2f", price)
	if role == domain.RoleSeller {
		body = fmt.Sprintf("Counter-offer: %.2f", price)
	}
	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		AuthorRole:     role,
		OfferID:        offer.ID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		s.logger.Warn("offer companion message failed", zap.String("offer_id", offer.ID), zap.Error(err))
	} else {
		s.publish(ctx, domain.Event{
			Kind:           domain.EventMessageInsert,
			ConversationID: conv.ID,
			Message:        msg,
		})
	}

	s.touch(ctx, conv.ID)
	s.publish(ctx, domain.Event{
		Kind:           domain.EventOfferInsert,
		ConversationID: conv.ID,
		Offer:          offer,
	})
	return offer, nil
}

// Accept moves a pending offer to accepted and rejects every other pending
// offer in the conversation, so at most one offer per round can lead to a
// reservation.
func (s *OfferService) Accept(ctx context.Context, offerID, callerID string) (*domain.Offer, error) {
	offer, conv, role, err := s.loadForTransition(ctx, offerID, callerID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(actionAccept, offer, role); err != nil {
		return nil, err
	}

	if err := s.swapStatus(ctx, offer, domain.OfferStatusAccepted); err != nil {
		return nil, err
	}

	others, err := s.store.ListOffers(ctx, conv.ID)
	if err != nil {
		s.logger.Warn("listing sibling offers failed", zap.String("conversation_id", conv.ID), zap.Error(err))
	} else {
		for i := range others {
			sibling := &others[i]
			if sibling.ID == offer.ID || sibling.Status != domain.OfferStatusPending {
				continue
			}
			if err := s.swapStatus(ctx, sibling, domain.OfferStatusRejected); err != nil {
				// Lost a race against another transition on the sibling;
				// whatever landed stands.
				continue
			}
		}
	}

	s.touch(ctx, conv.ID)
	return offer, nil
}

// Reject moves a pending offer to rejected.
func (s *OfferService) Reject(ctx context.Context, offerID, callerID string) (*domain.Offer, error) {
	offer, conv, role, err := s.loadForTransition(ctx, offerID, callerID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(actionReject, offer, role); err != nil {
		return nil, err
	}
	if err := s.swapStatus(ctx, offer, domain.OfferStatusRejected); err != nil {
		return nil, err
	}
	s.touch(ctx, conv.ID)
	return offer, nil
}

// Withdraw moves a pending offer to withdrawn; only the author may do so.
func (s *OfferService) Withdraw(ctx context.Context, offerID, callerID string) (*domain.Offer, error) {
	offer, conv, role, err := s.loadForTransition(ctx, offerID, callerID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(actionWithdraw, offer, role); err != nil {
		return nil, err
	}
	if err := s.swapStatus(ctx, offer, domain.OfferStatusWithdrawn); err != nil {
		return nil, err
	}
	s.touch(ctx, conv.ID)
	return offer, nil
}

// Reserve commits quantity units of the product against an accepted offer:
// it marks the offer reserved and materializes the order, which decrements
// available stock with an overdraft-rejecting conditional update. The
// reservation mark is rolled back when the order cannot be committed.
func (s *OfferService) Reserve(ctx context.Context, offerID, callerID string, quantity int) (*domain.Offer, *domain.Order, error) {
	if quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}

	offer, conv, role, err := s.loadForTransition(ctx, offerID, callerID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorizeTransition(actionReserve, offer, role); err != nil {
		return nil, nil, err
	}
	if offer.Reserved {
		return nil, nil, fmt.Errorf("%w: offer %s", domain.ErrAlreadyReserved, offer.ID)
	}
	if offer.Status != domain.OfferStatusAccepted {
		return nil, nil, fmt.Errorf("%w: cannot reserve %s offer", domain.ErrInvalidTransition, offer.Status)
	}
	if offer.ProductID == "" {
		return nil, nil, fmt.Errorf("%w: offer %s has no product", domain.ErrValidation, offer.ID)
	}

	ok, err := s.store.MarkOfferReserved(ctx, offer.ID, quantity, offer.Price)
	if err != nil {
		return nil, nil, fmt.Errorf("mark reserved: %w", err)
	}
	if !ok {
		// Guard failed under us: re-read to report the precise cause.
		current, rerr := s.store.GetOffer(ctx, offer.ID)
		if rerr == nil && current != nil && current.Reserved {
			return nil, nil, fmt.Errorf("%w: offer %s", domain.ErrAlreadyReserved, offer.ID)
		}
		return nil, nil, fmt.Errorf("%w: offer %s is no longer accepted", domain.ErrInvalidTransition, offer.ID)
	}

	order, err := s.orders.CreateOrderAndReserve(ctx, CreateOrderParams{
		ProductID:      offer.ProductID,
		BuyerID:        conv.BuyerID,
		SellerID:       conv.SellerID,
		ConversationID: conv.ID,
		Quantity:       quantity,
		FinalPrice:     offer.Price * float64(quantity),
	})
	if err != nil {
		if rbErr := s.store.ClearOfferReservation(ctx, offer.ID); rbErr != nil {
			s.logger.Error("reservation rollback failed",
				zap.String("offer_id", offer.ID), zap.Error(rbErr))
		}
		return nil, nil, err
	}

	offer.Reserved = true
	offer.ReservedQuantity = quantity
	offer.ReservedPrice = offer.Price

	s.touch(ctx, conv.ID)
	s.publish(ctx, domain.Event{
		Kind:           domain.EventOfferUpdate,
		ConversationID: conv.ID,
		Offer:          offer,
	})
	return offer, order, nil
}

// swapStatus performs the compare-and-swap transition out of the offer's
// current status and publishes the update. Whichever concurrent write lands
// first wins; the loser observes ErrInvalidTransition.
func (s *OfferService) swapStatus(ctx context.Context, offer *domain.Offer, to domain.OfferStatus) error {
	ok, err := s.store.UpdateOfferStatus(ctx, offer.ID, domain.OfferStatusPending, to)
	if err != nil {
		return fmt.Errorf("update offer status: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: offer %s is not pending", domain.ErrInvalidTransition, offer.ID)
	}
	offer.Status = to
	s.publish(ctx, domain.Event{
		Kind:           domain.EventOfferUpdate,
		ConversationID: offer.ConversationID,
		Offer:          offer,
	})
	return nil
}

func (s *OfferService) loadForTransition(ctx context.Context, offerID, callerID string) (*domain.Offer, *domain.Conversation, domain.Role, error) {
	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("get offer: %w", err)
	}
	if offer == nil {
		return nil, nil, "", fmt.Errorf("%w: offer %s", domain.ErrNotFound, offerID)
	}
	conv, role, err := s.memberOf(ctx, offer.ConversationID, callerID)
	if err != nil {
		return nil, nil, "", err
	}
	return offer, conv, role, nil
}

func (s *OfferService) memberOf(ctx context.Context, conversationID, userID string) (*domain.Conversation, domain.Role, error) {
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

func (s *OfferService) touch(ctx context.Context, conversationID string) {
	if err := s.store.TouchConversation(ctx, conversationID); err != nil {
		s.logger.Warn("touch conversation failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

func (s *OfferService) publish(ctx context.Context, event domain.Event) {
	if err := s.feed.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("kind", string(event.Kind)),
			zap.String("conversation_id", event.ConversationID),
			zap.Error(err))
	}
}
