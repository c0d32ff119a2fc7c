// internal/auction/events.go
package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carmarket/internal/market"
	"carmarket/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultFeedLimit and MaxFeedLimit bound one page of the activity feed.
const (
	DefaultFeedLimit = 100
	MaxFeedLimit     = 500
)

type createdEvent struct {
	SellerID   uuid.UUID       `json:"seller_id"`
	ItemID     uuid.UUID       `json:"item_id"`
	StartPrice decimal.Decimal `json:"start_price"`
	BidStep    decimal.Decimal `json:"bid_step"`
	EndsAt     time.Time       `json:"ends_at"`
}

type bidPlacedEvent struct {
	BidID      uuid.UUID        `json:"bid_id"`
	BidderID   uuid.UUID        `json:"bidder_id"`
	Amount     decimal.Decimal  `json:"amount"`
	RefundedID *uuid.UUID       `json:"refunded_id,omitempty"`
	Refund     *decimal.Decimal `json:"refund,omitempty"`
}

type finishedEvent struct {
	Outcome Outcome          `json:"outcome"`
	BuyerID *uuid.UUID       `json:"buyer_id,omitempty"`
	Price   *decimal.Decimal `json:"price,omitempty"`
}

type cancelledEvent struct {
	RefundedID *uuid.UUID       `json:"refunded_id,omitempty"`
	Refund     *decimal.Decimal `json:"refund,omitempty"`
}

// record appends one event to the auction's log inside tx, so the log only
// ever holds changes that committed.
func record(ctx context.Context, tx store.Tx, auctionID uuid.UUID, eventType market.AuctionEventType, data any, at time.Time) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	version, err := tx.Events().CurrentVersion(ctx, auctionID)
	if err != nil {
		return err
	}
	return tx.Events().Append(ctx, auctionID, version, &market.AuctionEvent{
		Type:      eventType,
		Data:      payload,
		CreatedAt: at,
	})
}

// currentLead returns the leader of a and the amount it holds, if any.
func currentLead(a *market.Auction) (*uuid.UUID, *decimal.Decimal) {
	if !a.HasLeader() {
		return nil, nil
	}
	id, amount := *a.CurrentBidderID, a.CurrentBid
	return &id, &amount
}

// History returns the activity log of one auction, oldest first.
func (s *service) History(ctx context.Context, auctionID uuid.UUID) ([]*market.AuctionEvent, error) {
	var history []*market.AuctionEvent
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Auctions().Get(ctx, auctionID); err != nil {
			return store.NotFoundAs(err, market.ErrAuctionNotFound.WithMessagef("auction %s not found", auctionID))
		}
		var err error
		history, err = tx.Events().ListByAuction(ctx, auctionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// Feed pages through every auction's events in commit order. Pass the ID of
// the last event seen as afterID to continue.
func (s *service) Feed(ctx context.Context, afterID int64, limit int) ([]*market.AuctionEvent, error) {
	if afterID < 0 {
		return nil, market.ErrInvalidInput.WithMessagef("cursor must not be negative")
	}
	switch {
	case limit <= 0:
		limit = DefaultFeedLimit
	case limit > MaxFeedLimit:
		limit = MaxFeedLimit
	}

	var page []*market.AuctionEvent
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		page, err = tx.Events().Stream(ctx, afterID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
