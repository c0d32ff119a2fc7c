// internal/store/sqlstore/sales.go
package sqlstore

import (
	"context"
	"fmt"

	"carmarket/internal/market"

	"github.com/google/uuid"
)

type sales struct{ t *Tx }

// Insert relies on unique auction_id/listing_id columns: a second sale for
// the same auction or listing fails with store.ErrConflict.
func (r sales) Insert(ctx context.Context, s *market.SaleRecord) error {
	err := r.t.insert(ctx, nil, `
		INSERT INTO sale_records (id, buyer_id, seller_id, item_id, price, auction_id, listing_id, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.BuyerID,
		s.SellerID,
		s.ItemID,
		s.Price,
		toNullUUID(s.AuctionID),
		toNullUUID(s.ListingID),
		toMillis(s.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert sale record: %w", err)
	}
	return nil
}

func (r sales) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*market.SaleRecord, error) {
	rows, err := r.t.query(ctx, `
		SELECT id, buyer_id, seller_id, item_id, price, auction_id, listing_id, completed_at
		FROM sale_records
		WHERE item_id = ?
		ORDER BY completed_at ASC, id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list sales of item %s: %w", itemID, err)
	}
	defer rows.Close()

	var out []*market.SaleRecord
	for rows.Next() {
		var s market.SaleRecord
		var auctionID, listingID uuid.NullUUID
		var completedAt int64
		if err := rows.Scan(&s.ID, &s.BuyerID, &s.SellerID, &s.ItemID, &s.Price, &auctionID, &listingID, &completedAt); err != nil {
			return nil, fmt.Errorf("scan sale record: %w", err)
		}
		s.AuctionID = fromNullUUID(auctionID)
		s.ListingID = fromNullUUID(listingID)
		s.CompletedAt = fromMillis(completedAt)
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale records: %w", err)
	}
	return out, nil
}
