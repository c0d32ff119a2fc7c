package marketplace

import (
	"context"
	"sync"
	"testing"
	"time"

	"carmarket/internal/market"
	"carmarket/internal/store"
	"carmarket/internal/store/storetest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (Service, store.Store) {
	t.Helper()
	st := storetest.Open(t)
	return NewService(st, nil, func() time.Time { return storetest.Epoch }), st
}

func TestCreateListing(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seller := storetest.User(t, st, "seller", "0")
	other := storetest.User(t, st, "other", "0")
	item := storetest.Item(t, st, seller.ID, market.ItemAvailable)
	pending := storetest.Item(t, st, seller.ID, market.ItemPending)

	_, err := svc.CreateListing(ctx, seller.ID, item.ID, decimal.Zero)
	require.ErrorIs(t, err, market.ErrInvalidAmount)

	_, err = svc.CreateListing(ctx, seller.ID, item.ID, decimal.RequireFromString("499.999"))
	require.ErrorIs(t, err, market.ErrInvalidAmount)

	_, err = svc.CreateListing(ctx, other.ID, item.ID, decimal.NewFromInt(500))
	require.ErrorIs(t, err, market.ErrNotOwner)

	_, err = svc.CreateListing(ctx, seller.ID, pending.ID, decimal.NewFromInt(500))
	require.ErrorIs(t, err, market.ErrItemNotAvailable)

	listing, err := svc.CreateListing(ctx, seller.ID, item.ID, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, market.ListingActive, listing.Status)
	assert.Equal(t, market.ItemOnSale, storetest.LoadItem(t, st, item.ID).Status)

	_, err = svc.CreateListing(ctx, seller.ID, item.ID, decimal.NewFromInt(600))
	require.ErrorIs(t, err, market.ErrItemNotAvailable)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, listing.ID, active[0].ID)
}

func TestCreateListingRejectsItemOnAuction(t *testing.T) {
	svc, st := newTestService(t)
	seller := storetest.User(t, st, "seller", "0")
	item := storetest.Item(t, st, seller.ID, market.ItemAvailable)
	storetest.Read(t, st, func(ctx context.Context, tx store.Tx) error {
		a := market.NewAuction(item.ID, seller.ID, decimal.NewFromInt(100), decimal.NewFromInt(10),
			storetest.Epoch, storetest.Epoch.Add(time.Hour))
		return tx.Auctions().Insert(ctx, a)
	})

	_, err := svc.CreateListing(context.Background(), seller.ID, item.ID, decimal.NewFromInt(500))
	require.ErrorIs(t, err, market.ErrDuplicateActiveAuction)
}

func TestBuy(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seller := storetest.User(t, st, "seller", "10")
	buyer := storetest.User(t, st, "buyer", "750")
	item := storetest.Item(t, st, seller.ID, market.ItemAvailable)
	listing, err := svc.CreateListing(ctx, seller.ID, item.ID, decimal.RequireFromString("499.99"))
	require.NoError(t, err)

	_, err = svc.Buy(ctx, seller.ID, listing.ID)
	require.ErrorIs(t, err, market.ErrSelfPurchase)

	sale, err := svc.Buy(ctx, buyer.ID, listing.ID)
	require.NoError(t, err)
	require.NotNil(t, sale.ListingID)
	assert.Equal(t, listing.ID, *sale.ListingID)
	assert.Nil(t, sale.AuctionID)

	storetest.RequireAmount(t, "250.01", storetest.LoadUser(t, st, buyer.ID).Balance)
	storetest.RequireAmount(t, "509.99", storetest.LoadUser(t, st, seller.ID).Balance)
	got := storetest.LoadItem(t, st, item.ID)
	assert.Equal(t, buyer.ID, got.OwnerID)
	assert.Equal(t, market.ItemAvailable, got.Status)
	assert.Len(t, storetest.Sales(t, st, item.ID), 1)

	_, err = svc.Buy(ctx, buyer.ID, listing.ID)
	require.ErrorIs(t, err, market.ErrListingNotActive)
	assert.Equal(t, market.KindInvalidState, market.KindOf(err))
}

func TestBuyInsufficientBalanceChangesNothing(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seller := storetest.User(t, st, "seller", "0")
	buyer := storetest.User(t, st, "buyer", "100")
	item := storetest.Item(t, st, seller.ID, market.ItemAvailable)
	listing, err := svc.CreateListing(ctx, seller.ID, item.ID, decimal.NewFromInt(500))
	require.NoError(t, err)

	_, err = svc.Buy(ctx, buyer.ID, listing.ID)
	require.ErrorIs(t, err, market.ErrInsufficientBalance)

	storetest.RequireAmount(t, "100", storetest.LoadUser(t, st, buyer.ID).Balance)
	storetest.RequireAmount(t, "0", storetest.LoadUser(t, st, seller.ID).Balance)
	assert.Equal(t, market.ItemOnSale, storetest.LoadItem(t, st, item.ID).Status)
	assert.Empty(t, storetest.Sales(t, st, item.ID))

	_, err = svc.Buy(ctx, buyer.ID, uuid.New())
	require.ErrorIs(t, err, market.ErrListingNotFound)
}

func TestConcurrentBuyersOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seller := storetest.User(t, st, "seller", "0")
	item := storetest.Item(t, st, seller.ID, market.ItemAvailable)
	listing, err := svc.CreateListing(ctx, seller.ID, item.ID, decimal.NewFromInt(300))
	require.NoError(t, err)

	const buyers = 5
	ids := make([]uuid.UUID, buyers)
	for i := range ids {
		ids[i] = storetest.User(t, st, "buyer"+string(rune('a'+i)), "1000").ID
	}

	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Buy(ctx, ids[i], listing.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		require.ErrorIs(t, err, market.ErrListingNotActive)
	}
	assert.Equal(t, 1, winners)
	assert.Len(t, storetest.Sales(t, st, item.ID), 1)
	storetest.RequireAmount(t, "300", storetest.LoadUser(t, st, seller.ID).Balance)
}

func TestCancelListing(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seller := storetest.User(t, st, "seller", "0")
	other := storetest.User(t, st, "other", "0")
	item := storetest.Item(t, st, seller.ID, market.ItemAvailable)
	listing, err := svc.CreateListing(ctx, seller.ID, item.ID, decimal.NewFromInt(300))
	require.NoError(t, err)

	_, err = svc.CancelListing(ctx, other.ID, listing.ID)
	require.ErrorIs(t, err, market.ErrNotOwner)

	cancelled, err := svc.CancelListing(ctx, seller.ID, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, market.ListingCancelled, cancelled.Status)
	assert.Equal(t, market.ItemAvailable, storetest.LoadItem(t, st, item.ID).Status)

	_, err = svc.CancelListing(ctx, seller.ID, listing.ID)
	require.ErrorIs(t, err, market.ErrListingNotActive)

	relisted, err := svc.CreateListing(ctx, seller.ID, item.ID, decimal.NewFromInt(350))
	require.NoError(t, err)
	assert.NotEqual(t, listing.ID, relisted.ID)
}
