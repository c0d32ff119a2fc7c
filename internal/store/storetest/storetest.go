// internal/store/storetest/storetest.go

// Package storetest provides a migrated in-memory store and seeding helpers
// for package tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"carmarket/internal/market"
	"carmarket/internal/store"
	"carmarket/internal/store/sqlite"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Epoch is the fixed "now" seeded rows are stamped with.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Open returns an in-memory SQLite store closed at test cleanup.
func Open(t testing.TB) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// User inserts a user holding balance.
func User(t testing.TB, st store.Store, name, balance string) *market.User {
	t.Helper()
	u := &market.User{
		ID:        uuid.New(),
		Username:  name,
		Email:     name + "@example.com",
		Balance:   decimal.RequireFromString(balance),
		CreatedAt: Epoch,
	}
	require.NoError(t, st.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Users().Insert(ctx, u)
	}))
	return u
}

// Item inserts a car owned by ownerID.
func Item(t testing.TB, st store.Store, ownerID uuid.UUID, status market.ItemStatus) *market.Item {
	t.Helper()
	item := &market.Item{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        "Porsche 911 Carrera RS",
		Description: "1973, Grand Prix White",
		Status:      status,
		CreatedAt:   Epoch,
	}
	require.NoError(t, st.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Items().Insert(ctx, item)
	}))
	return item
}

// Read runs fn in its own transaction and fails the test on error.
func Read(t testing.TB, st store.Store, fn store.TxFunc) {
	t.Helper()
	require.NoError(t, st.WithinTx(context.Background(), fn))
}

// LoadUser re-reads a user.
func LoadUser(t testing.TB, st store.Store, id uuid.UUID) *market.User {
	t.Helper()
	var u *market.User
	Read(t, st, func(ctx context.Context, tx store.Tx) error {
		var err error
		u, err = tx.Users().Get(ctx, id)
		return err
	})
	return u
}

// LoadItem re-reads an item.
func LoadItem(t testing.TB, st store.Store, id uuid.UUID) *market.Item {
	t.Helper()
	var item *market.Item
	Read(t, st, func(ctx context.Context, tx store.Tx) error {
		var err error
		item, err = tx.Items().Get(ctx, id)
		return err
	})
	return item
}

// Sales lists the sale records of an item.
func Sales(t testing.TB, st store.Store, itemID uuid.UUID) []*market.SaleRecord {
	t.Helper()
	var sales []*market.SaleRecord
	Read(t, st, func(ctx context.Context, tx store.Tx) error {
		var err error
		sales, err = tx.Sales().ListByItem(ctx, itemID)
		return err
	})
	return sales
}

// RequireAmount compares money by value, so "120" equals "120.00".
func RequireAmount(t testing.TB, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}
