// internal/store/sqlstore/listings.go
package sqlstore

import (
	"context"
	"fmt"

	"carmarket/internal/market"

	"github.com/google/uuid"
)

type listings struct{ t *Tx }

const listingColumns = `id, item_id, seller_id, price, status, created_at`

func scanListing(row rowScanner) (*market.Listing, error) {
	var l market.Listing
	var createdAt int64
	if err := row.Scan(&l.ID, &l.ItemID, &l.SellerID, &l.Price, &l.Status, &createdAt); err != nil {
		return nil, notFound(err)
	}
	l.CreatedAt = fromMillis(createdAt)
	return &l, nil
}

func (r listings) Get(ctx context.Context, id uuid.UUID) (*market.Listing, error) {
	row := r.t.queryRow(ctx, r.t.forUpdate(`SELECT `+listingColumns+` FROM listings WHERE id = ?`), id)
	l, err := scanListing(row)
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return l, nil
}

func (r listings) FindActiveByItem(ctx context.Context, itemID uuid.UUID) (*market.Listing, error) {
	row := r.t.queryRow(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE item_id = ? AND status = ?`, itemID, market.ListingActive)
	l, err := scanListing(row)
	if err != nil {
		return nil, fmt.Errorf("find active listing for item %s: %w", itemID, err)
	}
	return l, nil
}

func (r listings) ListByStatus(ctx context.Context, status market.ListingStatus) ([]*market.Listing, error) {
	rows, err := r.t.query(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE status = ?
		ORDER BY created_at DESC, id`, status)
	if err != nil {
		return nil, fmt.Errorf("list %s listings: %w", status, err)
	}
	defer rows.Close()

	var out []*market.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return out, nil
}

func (r listings) Insert(ctx context.Context, l *market.Listing) error {
	err := r.t.insert(ctx, market.ErrItemAlreadyListed, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.ItemID, l.SellerID, l.Price, l.Status, toMillis(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (r listings) Update(ctx context.Context, l *market.Listing) error {
	if err := r.t.updateOne(ctx, `UPDATE listings SET status = ? WHERE id = ?`, l.Status, l.ID); err != nil {
		return fmt.Errorf("update listing %s: %w", l.ID, err)
	}
	return nil
}
