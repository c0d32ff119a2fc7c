// internal/store/sqlstore/auctions.go
package sqlstore

import (
	"context"
	"fmt"

	"carmarket/internal/market"

	"github.com/google/uuid"
)

type auctions struct{ t *Tx }

const auctionColumns = `id, item_id, seller_id, start_price, bid_step, current_bid,
	current_bidder_id, status, started_at, ends_at`

func scanAuction(row rowScanner) (*market.Auction, error) {
	var a market.Auction
	var bidder uuid.NullUUID
	var startedAt, endsAt int64
	err := row.Scan(
		&a.ID,
		&a.ItemID,
		&a.SellerID,
		&a.StartPrice,
		&a.BidStep,
		&a.CurrentBid,
		&bidder,
		&a.Status,
		&startedAt,
		&endsAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	a.CurrentBidderID = fromNullUUID(bidder)
	a.StartedAt = fromMillis(startedAt)
	a.EndsAt = fromMillis(endsAt)
	return &a, nil
}

func (r auctions) Get(ctx context.Context, id uuid.UUID) (*market.Auction, error) {
	row := r.t.queryRow(ctx, r.t.forUpdate(`SELECT `+auctionColumns+` FROM auctions WHERE id = ?`), id)
	a, err := scanAuction(row)
	if err != nil {
		return nil, fmt.Errorf("get auction %s: %w", id, err)
	}
	return a, nil
}

func (r auctions) FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*market.Auction, error) {
	row := r.t.queryRow(ctx, `
		SELECT `+auctionColumns+`
		FROM auctions
		WHERE item_id = ? AND status = ?`, itemID, market.AuctionActive)
	a, err := scanAuction(row)
	if err != nil {
		return nil, fmt.Errorf("find active auction for item %s: %w", itemID, err)
	}
	return a, nil
}

func (r auctions) ListByStatus(ctx context.Context, status market.AuctionStatus) ([]*market.Auction, error) {
	rows, err := r.t.query(ctx, `
		SELECT `+auctionColumns+`
		FROM auctions
		WHERE status = ?
		ORDER BY ends_at ASC, id`, status)
	if err != nil {
		return nil, fmt.Errorf("list %s auctions: %w", status, err)
	}
	defer rows.Close()

	var out []*market.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auctions: %w", err)
	}
	return out, nil
}

// Insert maps the one-active-auction-per-item index violation to
// market.ErrDuplicateActiveAuction.
func (r auctions) Insert(ctx context.Context, a *market.Auction) error {
	err := r.t.insert(ctx, market.ErrDuplicateActiveAuction, `
		INSERT INTO auctions (`+auctionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.ItemID,
		a.SellerID,
		a.StartPrice,
		a.BidStep,
		a.CurrentBid,
		toNullUUID(a.CurrentBidderID),
		a.Status,
		toMillis(a.StartedAt),
		toMillis(a.EndsAt),
	)
	if err != nil {
		return fmt.Errorf("insert auction: %w", err)
	}
	return nil
}

// Update writes the mutable columns: price ladder and status.
func (r auctions) Update(ctx context.Context, a *market.Auction) error {
	err := r.t.updateOne(ctx, `
		UPDATE auctions
		SET current_bid = ?, current_bidder_id = ?, status = ?
		WHERE id = ?`,
		a.CurrentBid, toNullUUID(a.CurrentBidderID), a.Status, a.ID)
	if err != nil {
		return fmt.Errorf("update auction %s: %w", a.ID, err)
	}
	return nil
}
