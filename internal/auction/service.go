// internal/auction/service.go
package auction

import (
	"context"

	"carmarket/internal/market"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service defines the interface for the auction engine.
type Service interface {
	CreateAuction(ctx context.Context, sellerID uuid.UUID, terms Terms) (*market.Auction, error)
	PlaceBid(ctx context.Context, bidderID, auctionID uuid.UUID, amount decimal.Decimal) (*market.Bid, error)
	Finalize(ctx context.Context, auctionID uuid.UUID) (Outcome, error)
	SweepExpired(ctx context.Context) (SweepResult, error)
	CancelAuction(ctx context.Context, auctionID uuid.UUID) (*market.Auction, error)
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*Details, error)
	ListActive(ctx context.Context) ([]*market.Auction, error)
	History(ctx context.Context, auctionID uuid.UUID) ([]*market.AuctionEvent, error)
	Feed(ctx context.Context, afterID int64, limit int) ([]*market.AuctionEvent, error)
}
