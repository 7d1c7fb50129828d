package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/tradepost/negotiation/internal/core/domain"
	"github.com/tradepost/negotiation/internal/port"
)

// SnapshotService reads the product projection displayed inside a
// conversation. Any lookup failure degrades to a nil snapshot so a thread
// can render with partial information.
type SnapshotService struct {
	products port.ProductStore
	logger   *zap.Logger
}

func NewSnapshotService(products port.ProductStore, logger *zap.Logger) *SnapshotService {
	return &SnapshotService{products: products, logger: logger}
}

func (s *SnapshotService) Snapshot(ctx context.Context, productID string) *domain.ProductSnapshot {
	if productID == "" {
		return nil
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		s.logger.Warn("product snapshot read failed", zap.String("product_id", productID), zap.Error(err))
		return nil
	}
	if product == nil {
		return nil
	}

	var profile *domain.SellerProfile
	if product.SellerID != "" {
		profile, err = s.products.GetSellerProfile(ctx, product.SellerID)
		if err != nil {
			s.logger.Warn("seller profile read failed", zap.String("seller_id", product.SellerID), zap.Error(err))
			profile = nil
		}
	}

	return &domain.ProductSnapshot{
		Name:         product.Name,
		Unit:         product.Unit,
		PricePerUnit: product.Price,
		Location:     product.Location,
		Inventory:    product.Inventory,
		SellerName:   profile.DisplayName(),
	}
}
