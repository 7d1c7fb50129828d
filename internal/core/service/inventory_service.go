package service

import (
	"context"
	"fmt"

	"github.com/tradepost/negotiation/internal/port"

	"github.com/tradepost/negotiation/internal/core/domain"
)

// InventoryService computes what is left of a product's listed inventory
// once active reservations are subtracted. The result is advisory: the hard
// allocation barrier is the conditional stock decrement in the order path.
type InventoryService struct {
	products port.ProductStore
	offers   port.OfferStore
}

func NewInventoryService(products port.ProductStore, offers port.OfferStore) *InventoryService {
	return &InventoryService{products: products, offers: offers}
}

// AvailableQuantity is total listed inventory minus the sum of
// reserved_quantity over accepted, reserved offers on the product, never
// negative.
func (s *InventoryService) AvailableQuantity(ctx context.Context, productID string) (int, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return 0, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}

	reserved, err := s.offers.SumReservedQuantity(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("sum reservations: %w", err)
	}

	available := product.Inventory - reserved
	if available < 0 {
		available = 0
	}
	return available, nil
}

// CanReserve reports whether the requested quantity fits in the currently
// available inventory. Point-in-time check, no locking guarantee.
func (s *InventoryService) CanReserve(ctx context.Context, productID string, requested int) (bool, error) {
	if requested <= 0 {
		return false, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	available, err := s.AvailableQuantity(ctx, productID)
	if err != nil {
		return false, err
	}
	return requested <= available, nil
}

// ProductReservations summarizes the active reservations on a product.
type ProductReservations struct {
	TotalReserved int                  `json:"total_reserved"`
	Reservations  []domain.Reservation `json:"reservations"`
}

// Reservations lists the product's active reservations, newest first.
func (s *InventoryService) Reservations(ctx context.Context, productID string) (*ProductReservations, error) {
	list, err := s.offers.ListReservations(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	total := 0
	for _, r := range list {
		total += r.Quantity
	}
	return &ProductReservations{TotalReserved: total, Reservations: list}, nil
}
