// internal/market/domain.go
package market

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemStatus is the marketplace state of a car.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemAvailable ItemStatus = "available"
	ItemOnAuction ItemStatus = "on_auction"
	ItemOnSale    ItemStatus = "on_sale"
	ItemSold      ItemStatus = "sold"
	ItemRejected  ItemStatus = "rejected"
	// ItemDeleted hides a car from its owner while sale history keeps
	// referencing the row.
	ItemDeleted   ItemStatus = "deleted"
)

// Item represents a collectible car owned by exactly one user.
type Item struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      ItemStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// OfferableBy checks that userID may put the item up for auction or sale.
func (i *Item) OfferableBy(userID uuid.UUID) error {
	if i.OwnerID != userID {
		return ErrNotOwner
	}
	if i.Status != ItemAvailable {
		return ErrItemNotAvailable.WithMessagef("item %s is %s, only available items can be offered", i.ID, i.Status)
	}
	return nil
}

// User is a marketplace participant holding a balance.
type User struct {
	ID        uuid.UUID       `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Credit adds amount to the user's balance.
func (u *User) Credit(amount decimal.Decimal) {
	u.Balance = u.Balance.Add(amount)
}

// Debit removes amount from the user's balance.
func (u *User) Debit(amount decimal.Decimal) {
	u.Balance = u.Balance.Sub(amount)
}

// CanAfford reports whether the balance covers amount.
func (u *User) CanAfford(amount decimal.Decimal) bool {
	return u.Balance.GreaterThanOrEqual(amount)
}

// MoneyScale is the number of decimal places stored for every amount.
const MoneyScale = 2

// WholeCents reports whether amount fits MoneyScale without rounding.
func WholeCents(amount decimal.Decimal) bool {
	return amount.Round(MoneyScale).Equal(amount)
}

// Credential holds a user's salted password hash.
type Credential struct {
	UserID       uuid.UUID `json:"user_id"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
}

// AuctionStatus is the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionActive    AuctionStatus = "active"
	AuctionFinished  AuctionStatus = "finished"
	AuctionCancelled AuctionStatus = "cancelled"
)

// Terminal reports whether no transition leaves the status.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionFinished || s == AuctionCancelled
}

// Auction is a timed competitive-bidding listing for one item.
type Auction struct {
	ID              uuid.UUID       `json:"id"`
	ItemID          uuid.UUID       `json:"item_id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	StartPrice      decimal.Decimal `json:"start_price"`
	BidStep         decimal.Decimal `json:"bid_step"`
	CurrentBid      decimal.Decimal `json:"current_bid"`
	CurrentBidderID *uuid.UUID      `json:"current_bidder_id,omitempty"`
	Status          AuctionStatus   `json:"status"`
	StartedAt       time.Time       `json:"started_at"`
	EndsAt          time.Time       `json:"ends_at"`
}

// NewAuction builds an active auction with no bids.
func NewAuction(itemID, sellerID uuid.UUID, startPrice, bidStep decimal.Decimal, startedAt, endsAt time.Time) *Auction {
	return &Auction{
		ID:         uuid.New(),
		ItemID:     itemID,
		SellerID:   sellerID,
		StartPrice: startPrice,
		BidStep:    bidStep,
		CurrentBid: decimal.Zero,
		Status:     AuctionActive,
		StartedAt:  startedAt,
		EndsAt:     endsAt,
	}
}

// Expired reports whether the deadline has been reached at now.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndsAt)
}

// AcceptsBids reports whether the auction is active and before its deadline.
func (a *Auction) AcceptsBids(now time.Time) bool {
	return a.Status == AuctionActive && !a.Expired(now)
}

// HasLeader reports whether some user currently holds an accepted bid.
func (a *Auction) HasLeader() bool {
	return a.CurrentBidderID != nil && a.CurrentBid.IsPositive()
}

// IsLeader reports whether userID holds the current highest bid.
func (a *Auction) IsLeader(userID uuid.UUID) bool {
	return a.CurrentBidderID != nil && *a.CurrentBidderID == userID
}

// MinAcceptableBid is the smallest amount the next bid may carry.
// The first bid must clear StartPrice + BidStep, not just StartPrice.
func (a *Auction) MinAcceptableBid() decimal.Decimal {
	base := a.StartPrice
	if a.CurrentBid.IsPositive() {
		base = a.CurrentBid
	}
	return base.Add(a.BidStep)
}

// Lead records bidderID as the new leader at amount.
func (a *Auction) Lead(bidderID uuid.UUID, amount decimal.Decimal) {
	leader := bidderID
	a.CurrentBidderID = &leader
	a.CurrentBid = amount
}

// Finish moves an active auction to finished.
func (a *Auction) Finish() error {
	return a.transition(AuctionFinished)
}

// Cancel moves an active auction to cancelled.
func (a *Auction) Cancel() error {
	return a.transition(AuctionCancelled)
}

func (a *Auction) transition(to AuctionStatus) error {
	if a.Status != AuctionActive {
		return ErrAuctionFinished.WithMessagef("auction %s is already %s", a.ID, a.Status)
	}
	a.Status = to
	return nil
}

// Bid is one accepted, immutable bid.
type Bid struct {
	ID        uuid.UUID       `json:"id"`
	AuctionID uuid.UUID       `json:"auction_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListingStatus is the state of a fixed-price marketplace listing.
type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingCancelled ListingStatus = "cancelled"
)

// Listing offers an item at a fixed price.
type Listing struct {
	ID        uuid.UUID       `json:"id"`
	ItemID    uuid.UUID       `json:"item_id"`
	SellerID  uuid.UUID       `json:"seller_id"`
	Price     decimal.Decimal `json:"price"`
	Status    ListingStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaleRecord is the audit trail of one completed sale. Exactly one of
// AuctionID and ListingID is set.
type SaleRecord struct {
	ID          uuid.UUID       `json:"id"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	SellerID    uuid.UUID       `json:"seller_id"`
	ItemID      uuid.UUID       `json:"item_id"`
	Price       decimal.Decimal `json:"price"`
	AuctionID   *uuid.UUID      `json:"auction_id,omitempty"`
	ListingID   *uuid.UUID      `json:"listing_id,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}
