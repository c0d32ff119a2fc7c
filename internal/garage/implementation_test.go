package garage

import (
	"context"
	"strings"
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

func TestAddCarAndModerate(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	svc := NewService(st, nil, func() time.Time { return storetest.Epoch })
	owner := storetest.User(t, st, "owner", "0")

	car, err := svc.AddCar(ctx, owner.ID, "  Ferrari 250 GTO ", "one of 36")
	require.NoError(t, err)
	assert.Equal(t, "Ferrari 250 GTO", car.Name)
	assert.Equal(t, market.ItemPending, car.Status)
	assert.Equal(t, storetest.Epoch, car.CreatedAt)

	approved, err := svc.Moderate(ctx, car.ID, true)
	require.NoError(t, err)
	assert.Equal(t, market.ItemAvailable, approved.Status)

	_, err = svc.Moderate(ctx, car.ID, false)
	require.ErrorIs(t, err, market.ErrNotModeratable)
	assert.Equal(t, market.KindInvalidState, market.KindOf(err))

	got, err := svc.GetCar(ctx, car.ID)
	require.NoError(t, err)
	assert.Equal(t, market.ItemAvailable, got.Status)
}

func TestModerateReject(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	svc := NewService(st, nil, nil)
	owner := storetest.User(t, st, "owner", "0")
	car, err := svc.AddCar(ctx, owner.ID, "Trabant 601", "")
	require.NoError(t, err)

	rejected, err := svc.Moderate(ctx, car.ID, false)
	require.NoError(t, err)
	assert.Equal(t, market.ItemRejected, rejected.Status)

	_, err = svc.Moderate(ctx, uuid.New(), true)
	require.ErrorIs(t, err, market.ErrItemNotFound)
}

func TestAddCarValidation(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	svc := NewService(st, nil, nil)
	owner := storetest.User(t, st, "owner", "0")

	tests := []struct {
		name        string
		owner       uuid.UUID
		carName     string
		description string
		want        error
	}{
		{name: "blank name", owner: owner.ID, carName: "   ", want: market.ErrInvalidInput},
		{name: "long name", owner: owner.ID, carName: strings.Repeat("x", maxNameLength+1), want: market.ErrInvalidInput},
		{name: "long description", owner: owner.ID, carName: "Lada", description: strings.Repeat("y", maxDescriptionLength+1), want: market.ErrInvalidInput},
		{name: "unknown owner", owner: uuid.New(), carName: "Lada", want: market.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddCar(ctx, tt.owner, tt.carName, tt.description)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestListOwned(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	svc := NewService(st, nil, nil)
	alice := storetest.User(t, st, "alice", "0")
	bob := storetest.User(t, st, "bob", "0")
	storetest.Item(t, st, alice.ID, market.ItemAvailable)
	storetest.Item(t, st, alice.ID, market.ItemSold)
	storetest.Item(t, st, bob.ID, market.ItemAvailable)

	items, err := svc.ListOwned(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, alice.ID, item.OwnerID)
	}

	_, err = svc.GetCar(ctx, uuid.New())
	require.ErrorIs(t, err, market.ErrItemNotFound)
}

func TestDeleteCar(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	svc := NewService(st, nil, nil)
	owner := storetest.User(t, st, "owner", "0")
	other := storetest.User(t, st, "other", "0")
	car := storetest.Item(t, st, owner.ID, market.ItemAvailable)

	_, err := svc.DeleteCar(ctx, other.ID, car.ID)
	require.ErrorIs(t, err, market.ErrNotOwner)

	deleted, err := svc.DeleteCar(ctx, owner.ID, car.ID)
	require.NoError(t, err)
	assert.Equal(t, market.ItemDeleted, deleted.Status)
	assert.Equal(t, market.ItemDeleted, storetest.LoadItem(t, st, car.ID).Status)

	_, err = svc.GetCar(ctx, car.ID)
	require.ErrorIs(t, err, market.ErrItemNotFound)
	_, err = svc.DeleteCar(ctx, owner.ID, car.ID)
	require.ErrorIs(t, err, market.ErrItemNotFound)
	_, err = svc.Moderate(ctx, car.ID, true)
	require.ErrorIs(t, err, market.ErrItemNotFound)

	owned, err := svc.ListOwned(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestDeleteCarRefusesOfferedCars(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	svc := NewService(st, nil, nil)
	owner := storetest.User(t, st, "owner", "0")

	for _, status := range []market.ItemStatus{market.ItemOnAuction, market.ItemOnSale} {
		car := storetest.Item(t, st, owner.ID, status)
		_, err := svc.DeleteCar(ctx, owner.ID, car.ID)
		require.ErrorIs(t, err, market.ErrItemInUse, status)
		assert.Equal(t, market.KindInvalidState, market.KindOf(err))
		assert.Equal(t, status, storetest.LoadItem(t, st, car.ID).Status)
	}

	listed := storetest.Item(t, st, owner.ID, market.ItemAvailable)
	require.NoError(t, st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Listings().Insert(ctx, &market.Listing{
			ID:        uuid.New(),
			ItemID:    listed.ID,
			SellerID:  owner.ID,
			Price:     decimal.NewFromInt(500),
			Status:    market.ListingActive,
			CreatedAt: storetest.Epoch,
		})
	}))
	_, err := svc.DeleteCar(ctx, owner.ID, listed.ID)
	require.ErrorIs(t, err, market.ErrItemAlreadyListed)
	assert.Equal(t, market.ItemAvailable, storetest.LoadItem(t, st, listed.ID).Status)
}

func TestDeleteCarKeepsSaleHistory(t *testing.T) {
	ctx := context.Background()
	st := storetest.Open(t)
	svc := NewService(st, nil, nil)
	seller := storetest.User(t, st, "seller", "0")
	buyer := storetest.User(t, st, "buyer", "0")
	car := storetest.Item(t, st, buyer.ID, market.ItemAvailable)

	listingID := uuid.New()
	require.NoError(t, st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Listings().Insert(ctx, &market.Listing{
			ID:        listingID,
			ItemID:    car.ID,
			SellerID:  seller.ID,
			Price:     decimal.NewFromInt(500),
			Status:    market.ListingSold,
			CreatedAt: storetest.Epoch,
		}); err != nil {
			return err
		}
		return tx.Sales().Insert(ctx, &market.SaleRecord{
			ID:          uuid.New(),
			BuyerID:     buyer.ID,
			SellerID:    seller.ID,
			ItemID:      car.ID,
			Price:       decimal.NewFromInt(500),
			ListingID:   &listingID,
			CompletedAt: storetest.Epoch,
		})
	}))

	_, err := svc.DeleteCar(ctx, buyer.ID, car.ID)
	require.NoError(t, err)

	sales := storetest.Sales(t, st, car.ID)
	require.Len(t, sales, 1)
	assert.Equal(t, buyer.ID, sales[0].BuyerID)
}
