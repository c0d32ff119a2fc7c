// internal/store/offers.go
package store

import (
	"context"

	"carmarket/internal/market"

	"github.com/google/uuid"
)

// EnsureNotOffered fails when an active auction or an active listing already
// references the item.
func EnsureNotOffered(ctx context.Context, tx Tx, itemID uuid.UUID) error {
	if _, err := tx.Auctions().FindActiveByItem(ctx, itemID); err == nil {
		return market.ErrDuplicateActiveAuction
	} else if !IsNotFound(err) {
		return err
	}
	if _, err := tx.Listings().FindActiveByItem(ctx, itemID); err == nil {
		return market.ErrItemAlreadyListed
	} else if !IsNotFound(err) {
		return err
	}
	return nil
}
