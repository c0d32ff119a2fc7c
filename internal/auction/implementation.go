// internal/auction/implementation.go
package auction

import (
	"context"
	"errors"
	"time"

	"carmarket/internal/logging"
	"carmarket/internal/market"
	"carmarket/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("carmarket/auction")

// Option configures the service.
type Option func(*service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithLogger injects the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *service) { s.log = logger }
}

// WithMinDuration overrides DefaultMinDuration.
func WithMinDuration(d time.Duration) Option {
	return func(s *service) { s.minDuration = d }
}

// service implements the Service interface.
type service struct {
	store       store.Store
	log         logrus.FieldLogger
	now         func() time.Time
	minDuration time.Duration
	metrics     instruments
}

// NewService creates a new auction engine on top of st.
func NewService(st store.Store, opts ...Option) Service {
	s := &service{
		store:       st,
		log:         logging.Discard(),
		now:         time.Now,
		minDuration: DefaultMinDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newInstruments(s.log)
	return s
}

// CreateAuction opens an auction for an available item the seller owns.
func (s *service) CreateAuction(ctx context.Context, sellerID uuid.UUID, terms Terms) (*market.Auction, error) {
	ctx, span := tracer.Start(ctx, "auction.CreateAuction", trace.WithAttributes(
		attribute.String("seller.id", sellerID.String()),
		attribute.String("item.id", terms.ItemID.String()),
	))
	defer span.End()

	now := s.now()
	if err := validateTerms(terms, now, s.minDuration); err != nil {
		return nil, fail(span, err)
	}

	var created *market.Auction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		item, err := tx.Items().Get(ctx, terms.ItemID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrItemNotFound.WithMessagef("item %s not found", terms.ItemID))
		}
		if err := item.OfferableBy(sellerID); err != nil {
			return err
		}
		if err := store.EnsureNotOffered(ctx, tx, item.ID); err != nil {
			return err
		}

		a := market.NewAuction(item.ID, sellerID, terms.StartPrice, terms.BidStep, now, terms.EndsAt)
		if err := tx.Auctions().Insert(ctx, a); err != nil {
			return err
		}
		item.Status = market.ItemOnAuction
		if err := tx.Items().Update(ctx, item); err != nil {
			return err
		}
		created = a
		return record(ctx, tx, a.ID, market.EventAuctionCreated, createdEvent{
			SellerID:   sellerID,
			ItemID:     item.ID,
			StartPrice: a.StartPrice,
			BidStep:    a.BidStep,
			EndsAt:     a.EndsAt,
		}, now)
	})
	if err != nil {
		return nil, fail(span, err)
	}

	span.SetAttributes(attribute.String("auction.id", created.ID.String()))
	s.log.WithFields(logrus.Fields{
		"auction_id": created.ID,
		"item_id":    created.ItemID,
		"seller_id":  sellerID,
		"ends_at":    created.EndsAt,
	}).Info("auction created")
	return created, nil
}

// PlaceBid runs the bid placement protocol in one transaction. A bid that
// arrives after the deadline is refused and the auction is finalized in a
// separate transaction once the bid transaction has rolled back.
func (s *service) PlaceBid(ctx context.Context, bidderID, auctionID uuid.UUID, amount decimal.Decimal) (*market.Bid, error) {
	ctx, span := tracer.Start(ctx, "auction.PlaceBid", trace.WithAttributes(
		attribute.String("auction.id", auctionID.String()),
		attribute.String("bidder.id", bidderID.String()),
		attribute.String("bid.amount", amount.String()),
	))
	defer span.End()

	if !amount.IsPositive() {
		return nil, s.rejectBid(ctx, span, market.ErrInvalidAmount)
	}
	if !market.WholeCents(amount) {
		return nil, s.rejectBid(ctx, span, market.ErrInvalidAmount.WithMessagef("bid must have at most %d decimal places", market.MoneyScale))
	}

	var (
		bid     *market.Bid
		refund  *market.User
		closing bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		bid, refund, closing = nil, nil, false
		now := s.now()

		a, err := tx.Auctions().Get(ctx, auctionID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrAuctionNotFound.WithMessagef("auction %s not found", auctionID))
		}
		if !a.AcceptsBids(now) {
			closing = true
			return market.ErrAuctionFinished.WithMessagef("auction %s is closed", auctionID)
		}
		if a.SellerID == bidderID {
			return market.ErrSelfBid
		}
		if a.IsLeader(bidderID) {
			return market.ErrAlreadyLeading
		}
		minimum := a.MinAcceptableBid()
		if amount.LessThan(minimum) {
			return market.ErrBidTooLow.WithMessagef("bid amount too low, minimum is %s", minimum.StringFixed(2))
		}

		refundedID, refundAmount := currentLead(a)
		if a.HasLeader() {
			leader, err := tx.Users().Get(ctx, *a.CurrentBidderID)
			if err != nil {
				return store.NotFoundAs(err, market.ErrUserNotFound.WithMessagef("leader %s not found", *a.CurrentBidderID))
			}
			leader.Credit(a.CurrentBid)
			if err := tx.Users().UpdateBalance(ctx, leader); err != nil {
				return err
			}
			refund = leader
		}

		bidder, err := tx.Users().Get(ctx, bidderID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrUserNotFound.WithMessagef("bidder %s not found", bidderID))
		}
		if !bidder.CanAfford(amount) {
			return market.ErrInsufficientBalance.WithMessagef("balance %s does not cover bid %s",
				bidder.Balance.StringFixed(2), amount.StringFixed(2))
		}
		bidder.Debit(amount)
		if err := tx.Users().UpdateBalance(ctx, bidder); err != nil {
			return err
		}

		placed := &market.Bid{
			ID:        uuid.New(),
			AuctionID: a.ID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: now,
		}
		if err := tx.Bids().Insert(ctx, placed); err != nil {
			return err
		}
		a.Lead(bidderID, amount)
		if err := tx.Auctions().Update(ctx, a); err != nil {
			return err
		}
		bid = placed
		return record(ctx, tx, a.ID, market.EventBidPlaced, bidPlacedEvent{
			BidID:      placed.ID,
			BidderID:   bidderID,
			Amount:     amount,
			RefundedID: refundedID,
			Refund:     refundAmount,
		}, now)
	})

	if closing {
		if _, ferr := s.Finalize(ctx, auctionID); ferr != nil {
			s.log.WithError(ferr).WithField("auction_id", auctionID).
				Warn("finalize after late bid failed, sweeper will retry")
		}
	}
	if err != nil {
		return nil, s.rejectBid(ctx, span, err)
	}

	s.metrics.bidAccepted(ctx)
	fields := logrus.Fields{
		"auction_id": auctionID,
		"bid_id":     bid.ID,
		"bidder_id":  bidderID,
		"amount":     amount.StringFixed(2),
	}
	if refund != nil {
		fields["refunded_id"] = refund.ID
	}
	s.log.WithFields(fields).Info("bid accepted")
	return bid, nil
}

func (s *service) rejectBid(ctx context.Context, span trace.Span, err error) error {
	s.metrics.bidRejected(ctx, err)
	s.log.WithError(err).WithField("kind", market.KindOf(err)).Debug("bid rejected")
	return fail(span, err)
}

// Finalize settles one auction. It re-reads the auction inside its own
// transaction and does nothing when the auction is no longer active, so any
// number of callers may race on the same id.
func (s *service) Finalize(ctx context.Context, auctionID uuid.UUID) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "auction.Finalize", trace.WithAttributes(
		attribute.String("auction.id", auctionID.String()),
	))
	defer span.End()

	var (
		outcome Outcome
		settled *market.Auction
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		outcome, settled = OutcomeNoop, nil

		a, err := tx.Auctions().Get(ctx, auctionID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrAuctionNotFound.WithMessagef("auction %s not found", auctionID))
		}
		if a.Status != market.AuctionActive {
			return nil
		}
		if err := a.Finish(); err != nil {
			return err
		}
		if err := tx.Auctions().Update(ctx, a); err != nil {
			return err
		}
		settled = a

		finished := finishedEvent{Outcome: OutcomeUnsold}
		if a.HasLeader() {
			outcome, err = s.settle(ctx, tx, a)
			if err != nil {
				return err
			}
			finished.Outcome = outcome
			if outcome == OutcomeSold {
				finished.BuyerID, finished.Price = currentLead(a)
			}
		} else {
			outcome = OutcomeUnsold
			found, err := s.releaseItem(ctx, tx, a.ItemID)
			if err != nil {
				return err
			}
			if !found {
				s.log.WithFields(logrus.Fields{
					"auction_id": a.ID,
					"item_id":    a.ItemID,
				}).Error("inconsistent auction state, item missing")
				outcome = OutcomeRecovered
				finished.Outcome = outcome
			}
		}
		return record(ctx, tx, a.ID, market.EventAuctionFinished, finished, s.now())
	})
	if err != nil {
		s.log.WithError(err).WithField("auction_id", auctionID).Warn("finalize failed")
		return "", fail(span, err)
	}

	span.SetAttributes(attribute.String("auction.outcome", string(outcome)))
	s.metrics.finalized(ctx, outcome)
	if settled != nil {
		entry := s.log.WithFields(logrus.Fields{
			"auction_id": auctionID,
			"item_id":    settled.ItemID,
			"outcome":    outcome,
		})
		if outcome == OutcomeSold {
			entry = entry.WithFields(logrus.Fields{
				"buyer_id": *settled.CurrentBidderID,
				"price":    settled.CurrentBid.StringFixed(2),
			})
		}
		entry.Info("auction finalized")
	}
	return outcome, nil
}

// settle pays the seller and hands the item to the leader. The leader's
// funds were taken when the bid was accepted.
func (s *service) settle(ctx context.Context, tx store.Tx, a *market.Auction) (Outcome, error) {
	buyerID := *a.CurrentBidderID

	item, err := optional(tx.Items().Get(ctx, a.ItemID))
	if err != nil {
		return "", err
	}
	seller, err := optional(tx.Users().Get(ctx, a.SellerID))
	if err != nil {
		return "", err
	}
	buyer, err := optional(tx.Users().Get(ctx, buyerID))
	if err != nil {
		return "", err
	}

	if item == nil || seller == nil || buyer == nil {
		s.log.WithFields(logrus.Fields{
			"auction_id":    a.ID,
			"item_found":    item != nil,
			"seller_found":  seller != nil,
			"buyer_found":   buyer != nil,
			"held_amount":   a.CurrentBid.StringFixed(2),
			"held_for_user": buyerID,
		}).Error("inconsistent auction state, closing without settlement")
		if item != nil {
			item.Status = market.ItemAvailable
			if err := tx.Items().Update(ctx, item); err != nil {
				return "", err
			}
		}
		return OutcomeRecovered, nil
	}

	seller.Credit(a.CurrentBid)
	if err := tx.Users().UpdateBalance(ctx, seller); err != nil {
		return "", err
	}

	item.OwnerID = buyer.ID
	item.Status = market.ItemAvailable
	if err := tx.Items().Update(ctx, item); err != nil {
		return "", err
	}

	auctionID := a.ID
	sale := &market.SaleRecord{
		ID:          uuid.New(),
		BuyerID:     buyer.ID,
		SellerID:    seller.ID,
		ItemID:      item.ID,
		Price:       a.CurrentBid,
		AuctionID:   &auctionID,
		CompletedAt: s.now(),
	}
	if err := tx.Sales().Insert(ctx, sale); err != nil {
		return "", err
	}
	return OutcomeSold, nil
}

// releaseItem returns an item to the available pool without changing owner.
// It reports false when the item row is gone.
func (s *service) releaseItem(ctx context.Context, tx store.Tx, itemID uuid.UUID) (bool, error) {
	item, err := optional(tx.Items().Get(ctx, itemID))
	if err != nil || item == nil {
		return false, err
	}
	item.Status = market.ItemAvailable
	return true, tx.Items().Update(ctx, item)
}

// SweepExpired finalizes every active auction whose deadline has passed.
// Each auction settles in its own transaction; a failure is logged and
// counted and the sweep moves on.
func (s *service) SweepExpired(ctx context.Context) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "auction.SweepExpired")
	defer span.End()

	var active []*market.Auction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		active, err = tx.Auctions().ListByStatus(ctx, market.AuctionActive)
		return err
	})
	if err != nil {
		return SweepResult{}, fail(span, err)
	}

	var result SweepResult
	now := s.now()
	for _, a := range active {
		if !a.Expired(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, fail(span, err)
		}
		result.Checked++

		outcome, err := s.Finalize(ctx, a.ID)
		if err != nil {
			result.Failed++
			s.log.WithError(err).WithField("auction_id", a.ID).Error("sweep could not finalize auction")
			continue
		}
		if outcome != OutcomeNoop {
			result.Finalized++
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.checked", result.Checked),
		attribute.Int("sweep.finalized", result.Finalized),
		attribute.Int("sweep.failed", result.Failed),
	)
	return result, nil
}

// CancelAuction administratively cancels a running auction, refunding the
// leader and returning the item to its owner. An auction past its deadline
// is refused and settled instead.
func (s *service) CancelAuction(ctx context.Context, auctionID uuid.UUID) (*market.Auction, error) {
	ctx, span := tracer.Start(ctx, "auction.CancelAuction", trace.WithAttributes(
		attribute.String("auction.id", auctionID.String()),
	))
	defer span.End()

	var (
		cancelled *market.Auction
		closing   bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cancelled, closing = nil, false
		a, err := tx.Auctions().Get(ctx, auctionID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrAuctionNotFound.WithMessagef("auction %s not found", auctionID))
		}
		if a.Status == market.AuctionActive && a.Expired(s.now()) {
			closing = true
			return market.ErrAuctionFinished.WithMessagef("auction %s has ended", auctionID)
		}
		if err := a.Cancel(); err != nil {
			return err
		}
		refundedID, refundAmount := currentLead(a)
		if a.HasLeader() {
			leader, err := tx.Users().Get(ctx, *a.CurrentBidderID)
			if err != nil {
				return store.NotFoundAs(err, market.ErrUserNotFound.WithMessagef("leader %s not found", *a.CurrentBidderID))
			}
			leader.Credit(a.CurrentBid)
			if err := tx.Users().UpdateBalance(ctx, leader); err != nil {
				return err
			}
		}
		if err := tx.Auctions().Update(ctx, a); err != nil {
			return err
		}
		if _, err := s.releaseItem(ctx, tx, a.ItemID); err != nil {
			return err
		}
		cancelled = a
		return record(ctx, tx, a.ID, market.EventAuctionCancelled, cancelledEvent{
			RefundedID: refundedID,
			Refund:     refundAmount,
		}, s.now())
	})
	if closing {
		if _, ferr := s.Finalize(ctx, auctionID); ferr != nil {
			s.log.WithError(ferr).WithField("auction_id", auctionID).
				Warn("finalize after refused cancel failed, sweeper will retry")
		}
	}
	if err != nil {
		return nil, fail(span, err)
	}

	s.log.WithField("auction_id", auctionID).Info("auction cancelled")
	return cancelled, nil
}

// GetAuction returns the auction with its bids, newest first.
func (s *service) GetAuction(ctx context.Context, auctionID uuid.UUID) (*Details, error) {
	var details *Details
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		a, err := tx.Auctions().Get(ctx, auctionID)
		if err != nil {
			return store.NotFoundAs(err, market.ErrAuctionNotFound.WithMessagef("auction %s not found", auctionID))
		}
		bids, err := tx.Bids().ListByAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		details = &Details{Auction: a, Bids: bids}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// ListActive returns the auctions still accepting bids, soonest deadline
// first. Expired but unswept auctions are left out.
func (s *service) ListActive(ctx context.Context) ([]*market.Auction, error) {
	var active []*market.Auction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		active, err = tx.Auctions().ListByStatus(ctx, market.AuctionActive)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	open := make([]*market.Auction, 0, len(active))
	for _, a := range active {
		if a.AcceptsBids(now) {
			open = append(open, a)
		}
	}
	return open, nil
}

// optional turns a missing row into a nil value.
func optional[T any](v *T, err error) (*T, error) {
	if store.IsNotFound(err) {
		return nil, nil
	}
	return v, err
}

func fail(span trace.Span, err error) error {
	if market.KindOf(err) == market.KindStoreFailure && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
