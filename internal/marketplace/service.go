// internal/marketplace/service.go
package marketplace

import (
	"context"

	"carmarket/internal/market"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service defines the interface for fixed-price sales.
type Service interface {
	CreateListing(ctx context.Context, sellerID, itemID uuid.UUID, price decimal.Decimal) (*market.Listing, error)
	Buy(ctx context.Context, buyerID, listingID uuid.UUID) (*market.SaleRecord, error)
	CancelListing(ctx context.Context, sellerID, listingID uuid.UUID) (*market.Listing, error)
	ListActive(ctx context.Context) ([]*market.Listing, error)
}
