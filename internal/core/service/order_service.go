package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/tradepost/negotiation/internal/core/domain"
	"github.com/tradepost/negotiation/internal/port"
)

type CreateOrderParams struct {
	ProductID      string
	BuyerID        string
	SellerID       string
	ConversationID string
	Quantity       int
	FinalPrice     float64
	Currency       string
}

// OrderService materializes orders out of accepted reservations. The store
// commits the order insert and the stock decrement in one transaction; the
// decrement is conditional on sufficient stock, so two concurrent
// reservations can never jointly overdraw a product.
type OrderService struct {
	store  port.OrderStore
	logger *zap.Logger
}

func NewOrderService(store port.OrderStore, logger *zap.Logger) *OrderService {
	return &OrderService{store: store, logger: logger}
}

func (s *OrderService) CreateOrderAndReserve(ctx context.Context, p CreateOrderParams) (*domain.Order, error) {
	if p.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	if p.FinalPrice <= 0 {
		return nil, fmt.Errorf("%w: final price must be positive", domain.ErrValidation)
	}
	if p.ProductID == "" || p.BuyerID == "" || p.SellerID == "" {
		return nil, fmt.Errorf("%w: product, buyer and seller are required", domain.ErrValidation)
	}

	currency := p.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	order := &domain.Order{
		ID:             ulid.Make().String(),
		ProductID:      p.ProductID,
		BuyerID:        p.BuyerID,
		SellerID:       p.SellerID,
		ConversationID: p.ConversationID,
		Quantity:       p.Quantity,
		TotalPrice:     p.FinalPrice,
		Currency:       currency,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("product_id", order.ProductID),
		zap.Int("quantity", order.Quantity))
	return order, nil
}
