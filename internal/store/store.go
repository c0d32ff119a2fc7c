// internal/store/store.go

// Package store defines the transactional store port the marketplace runs on.
// Every logical operation executes inside exactly one transaction obtained
// through Store.WithinTx; repositories handed to the callback are bound to it.
package store

import (
	"context"
	"errors"

	"carmarket/internal/market"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Get/Find methods when no row matches.
	ErrNotFound = errors.New("store: row not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("store: unique constraint violated")
)

// TxFunc is the body of a unit of work. Returning an error rolls back.
type TxFunc func(ctx context.Context, tx Tx) error

// Store opens units of work against the database.
type Store interface {
	// WithinTx runs fn in one transaction, committing when fn returns nil and
	// rolling back otherwise. Transient conflicts are retried with a fresh
	// transaction, so fn must not keep state between invocations.
	WithinTx(ctx context.Context, fn TxFunc) error
	Close() error
}

// Tx exposes the repositories bound to one open transaction.
type Tx interface {
	Users() UserRepository
	Items() ItemRepository
	Auctions() AuctionRepository
	Bids() BidRepository
	Listings() ListingRepository
	Sales() SaleRepository
	Events() EventRepository
}

// UserRepository persists users and their credentials.
type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*market.User, error)
	GetByUsername(ctx context.Context, username string) (*market.User, error)
	Insert(ctx context.Context, user *market.User) error
	UpdateBalance(ctx context.Context, user *market.User) error
	InsertCredential(ctx context.Context, cred *market.Credential) error
	GetCredential(ctx context.Context, userID uuid.UUID) (*market.Credential, error)
}

// ItemRepository persists cars.
type ItemRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*market.Item, error)
	Insert(ctx context.Context, item *market.Item) error
	Update(ctx context.Context, item *market.Item) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*market.Item, error)
}

// AuctionRepository persists auctions.
type AuctionRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*market.Auction, error)
	FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*market.Auction, error)
	ListByStatus(ctx context.Context, status market.AuctionStatus) ([]*market.Auction, error)
	Insert(ctx context.Context, auction *market.Auction) error
	Update(ctx context.Context, auction *market.Auction) error
}

// BidRepository appends and reads bid history.
type BidRepository interface {
	Insert(ctx context.Context, bid *market.Bid) error
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*market.Bid, error)
}

// ListingRepository persists fixed-price listings.
type ListingRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*market.Listing, error)
	FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*market.Listing, error)
	ListByStatus(ctx context.Context, status market.ListingStatus) ([]*market.Listing, error)
	Insert(ctx context.Context, listing *market.Listing) error
	Update(ctx context.Context, listing *market.Listing) error
}

// SaleRepository appends settlement records.
type SaleRepository interface {
	Insert(ctx context.Context, sale *market.SaleRecord) error
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]*market.SaleRecord, error)
}

// EventRepository is the append-only auction activity log.
type EventRepository interface {
	// Append stores events as versions expectedVersion+1, +2, ... of the
	// auction's log and fills in their ID, AuctionID and Version. It returns
	// ErrConflict when the log is no longer at expectedVersion.
	Append(ctx context.Context, auctionID uuid.UUID, expectedVersion int, events ...*market.AuctionEvent) error
	// CurrentVersion is 0 for an auction without events.
	CurrentVersion(ctx context.Context, auctionID uuid.UUID) (int, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*market.AuctionEvent, error)
	// Stream returns up to limit events with an ID above afterID, oldest first.
	Stream(ctx context.Context, afterID int64, limit int) ([]*market.AuctionEvent, error)
}

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NotFoundAs swaps a missing-row error for the given domain error and passes
// anything else through unchanged.
func NotFoundAs(err error, domainErr error) error {
	if IsNotFound(err) {
		return domainErr
	}
	return err
}
