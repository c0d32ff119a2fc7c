// internal/store/sqlstore/bids.go
package sqlstore

import (
	"context"
	"fmt"

	"carmarket/internal/market"

	"github.com/google/uuid"
)

type bids struct{ t *Tx }

func (r bids) Insert(ctx context.Context, b *market.Bid) error {
	err := r.t.insert(ctx, nil, `
		INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.AuctionID, b.BidderID, b.Amount, toMillis(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

// ListByAuction returns the bid history newest first. Accepted amounts are
// strictly increasing per auction, so amount breaks timestamp ties.
func (r bids) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*market.Bid, error) {
	rows, err := r.t.query(ctx, `
		SELECT id, auction_id, bidder_id, amount, created_at
		FROM bids
		WHERE auction_id = ?
		ORDER BY created_at DESC, CAST(amount AS NUMERIC) DESC`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list bids of %s: %w", auctionID, err)
	}
	defer rows.Close()

	var out []*market.Bid
	for rows.Next() {
		var b market.Bid
		var createdAt int64
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		b.CreatedAt = fromMillis(createdAt)
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bids: %w", err)
	}
	return out, nil
}
