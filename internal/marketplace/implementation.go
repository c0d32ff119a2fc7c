// internal/marketplace/implementation.go
package marketplace

import (
	"context"
	"time"

	"carmarket/internal/logging"
	"carmarket/internal/market"
	"carmarket/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("carmarket/marketplace")

var maxPrice = decimal.NewFromInt(1_000_000)

// service implements the Service interface.
type service struct {
	store store.Store
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewService creates a new marketplace service instance.
func NewService(st store.Store, logger logrus.FieldLogger, now func() time.Time) Service {
	if logger == nil {
		logger = logging.Discard()
	}
	if now == nil {
		now = time.Now
	}
	return &service{store: st, log: logger, now: now}
}

// CreateListing offers an available item at a fixed price.
func (s *service) CreateListing(ctx context.Context, sellerID, itemID uuid.UUID, price decimal.Decimal) (*market.Listing, error) {
	ctx, span := tracer.Start(ctx, "marketplace.CreateListing", trace.WithAttributes(
		attribute.String("item.id", itemID.String()),
	))
	defer span.End()

	if !price.IsPositive() || price.GreaterThan(maxPrice) {
		return nil, market.ErrInvalidAmount.WithMessagef("price must be in (0, %s]", maxPrice)
	}
	if !market.WholeCents(price) {
		return nil, market.ErrInvalidAmount.WithMessagef("price must have at most %d decimal places", market.MoneyScale)
	}

	var listing *market.Listing
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.Items().Get(ctx, itemID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrItemNotFound.WithMessagef("item %s not found", itemID))
		}
		if err := item.OfferableBy(sellerID); err != nil {
			return err
		}
		if err := store.EnsureNotOffered(ctx, tx, itemID); err != nil {
			return err
		}

		l := &market.Listing{
			ID:        uuid.New(),
			ItemID:    itemID,
			SellerID:  sellerID,
			Price:     price,
			Status:    market.ListingActive,
			CreatedAt: s.now(),
		}
		if err := tx.Listings().Insert(ctx, l); err != nil {
			return err
		}
		item.Status = market.ItemOnSale
		if err := tx.Items().Update(ctx, item); err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"listing_id": listing.ID,
		"item_id":    itemID,
		"price":      price.StringFixed(2),
	}).Info("listing created")
	return listing, nil
}

// Buy settles a listing: the buyer pays the seller and receives the item.
func (s *service) Buy(ctx context.Context, buyerID, listingID uuid.UUID) (*market.SaleRecord, error) {
	ctx, span := tracer.Start(ctx, "marketplace.Buy", trace.WithAttributes(
		attribute.String("listing.id", listingID.String()),
		attribute.String("buyer.id", buyerID.String()),
	))
	defer span.End()

	var sale *market.SaleRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		l, err := tx.Listings().Get(ctx, listingID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrListingNotFound.WithMessagef("listing %s not found", listingID))
		}
		if l.Status != market.ListingActive {
			return market.ErrListingNotActive.WithMessagef("listing %s is %s", listingID, l.Status)
		}
		if l.SellerID == buyerID {
			return market.ErrSelfPurchase
		}

		buyer, err := tx.Users().Get(ctx, buyerID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrUserNotFound.WithMessagef("buyer %s not found", buyerID))
		}
		if !buyer.CanAfford(l.Price) {
			return market.ErrInsufficientBalance.WithMessagef("balance %s does not cover price %s",
				buyer.Balance.StringFixed(2), l.Price.StringFixed(2))
		}
		seller, err := tx.Users().Get(ctx, l.SellerID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrUserNotFound.WithMessagef("seller %s not found", l.SellerID))
		}
		item, err := tx.Items().Get(ctx, l.ItemID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrItemNotFound.WithMessagef("item %s not found", l.ItemID))
		}

		buyer.Debit(l.Price)
		if err := tx.Users().UpdateBalance(ctx, buyer); err != nil {
			return err
		}
		seller.Credit(l.Price)
		if err := tx.Users().UpdateBalance(ctx, seller); err != nil {
			return err
		}

		item.OwnerID = buyerID
		item.Status = market.ItemAvailable
		if err := tx.Items().Update(ctx, item); err != nil {
			return err
		}
		l.Status = market.ListingSold
		if err := tx.Listings().Update(ctx, l); err != nil {
			return err
		}

		id := l.ID
		record := &market.SaleRecord{
			ID:          uuid.New(),
			BuyerID:     buyerID,
			SellerID:    l.SellerID,
			ItemID:      l.ItemID,
			Price:       l.Price,
			ListingID:   &id,
			CompletedAt: s.now(),
		}
		if err := tx.Sales().Insert(ctx, record); err != nil {
			return err
		}
		sale = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"listing_id": listingID,
		"buyer_id":   buyerID,
		"seller_id":  sale.SellerID,
		"price":      sale.Price.StringFixed(2),
	}).Info("listing sold")
	return sale, nil
}

// CancelListing withdraws an active listing; only its seller may do so.
func (s *service) CancelListing(ctx context.Context, sellerID, listingID uuid.UUID) (*market.Listing, error) {
	var cancelled *market.Listing
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		l, err := tx.Listings().Get(ctx, listingID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrListingNotFound.WithMessagef("listing %s not found", listingID))
		}
		if l.SellerID != sellerID {
			return market.ErrNotOwner
		}
		if l.Status != market.ListingActive {
			return market.ErrListingNotActive.WithMessagef("listing %s is %s", listingID, l.Status)
		}

		l.Status = market.ListingCancelled
		if err := tx.Listings().Update(ctx, l); err != nil {
			return err
		}
		item, err := tx.Items().Get(ctx, l.ItemID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrItemNotFound.WithMessagef("item %s not found", l.ItemID))
		}
		item.Status = market.ItemAvailable
		if err := tx.Items().Update(ctx, item); err != nil {
			return err
		}
		cancelled = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("listing_id", listingID).Info("listing cancelled")
	return cancelled, nil
}

func (s *service) ListActive(ctx context.Context) ([]*market.Listing, error) {
	var listings []*market.Listing
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		listings, err = tx.Listings().ListByStatus(ctx, market.ListingActive)
		return err
	})
	return listings, err
}
