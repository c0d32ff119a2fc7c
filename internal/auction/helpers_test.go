package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"carmarket/internal/market"
	"carmarket/internal/store"
	"carmarket/internal/store/sqlite"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store *sqlite.Store
	clock *testClock
	svc   Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clock := newTestClock()
	return &testEnv{
		store: st,
		clock: clock,
		svc:   NewService(st, WithClock(clock.Now)),
	}
}

// withStore returns a service sharing the env's clock but running on st.
func (e *testEnv) withStore(st store.Store) Service {
	return NewService(st, WithClock(e.clock.Now))
}

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, amount(want).Equal(got), "want %s, got %s", want, got)
}

func (e *testEnv) seedUser(t *testing.T, name, balance string) *market.User {
	t.Helper()
	u := &market.User{
		ID:        uuid.New(),
		Username:  name,
		Email:     name + "@example.com",
		Balance:   amount(balance),
		CreatedAt: e.clock.Now(),
	}
	require.NoError(t, e.store.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Users().Insert(ctx, u)
	}))
	return u
}

func (e *testEnv) seedItem(t *testing.T, ownerID uuid.UUID, status market.ItemStatus) *market.Item {
	t.Helper()
	item := &market.Item{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      "1967 Shelby GT500",
		Status:    status,
		CreatedAt: e.clock.Now(),
	}
	require.NoError(t, e.store.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Items().Insert(ctx, item)
	}))
	return item
}

func (e *testEnv) terms(itemID uuid.UUID) Terms {
	return Terms{
		ItemID:     itemID,
		StartPrice: amount("100"),
		BidStep:    amount("10"),
		EndsAt:     e.clock.Now().Add(10 * time.Minute),
	}
}

// openAuction creates a seller, an available car and a 100/10 auction on it.
func (e *testEnv) openAuction(t *testing.T) (*market.Auction, *market.User) {
	t.Helper()
	seller := e.seedUser(t, "seller-"+uuid.NewString()[:8], "0")
	item := e.seedItem(t, seller.ID, market.ItemAvailable)
	a, err := e.svc.CreateAuction(context.Background(), seller.ID, e.terms(item.ID))
	require.NoError(t, err)
	return a, seller
}

func (e *testEnv) user(t *testing.T, id uuid.UUID) *market.User {
	t.Helper()
	var u *market.User
	require.NoError(t, e.store.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		u, err = tx.Users().Get(ctx, id)
		return err
	}))
	return u
}

func (e *testEnv) item(t *testing.T, id uuid.UUID) *market.Item {
	t.Helper()
	var item *market.Item
	require.NoError(t, e.store.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		item, err = tx.Items().Get(ctx, id)
		return err
	}))
	return item
}

func (e *testEnv) auction(t *testing.T, id uuid.UUID) *market.Auction {
	t.Helper()
	var a *market.Auction
	require.NoError(t, e.store.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		a, err = tx.Auctions().Get(ctx, id)
		return err
	}))
	return a
}

func (e *testEnv) sales(t *testing.T, itemID uuid.UUID) []*market.SaleRecord {
	t.Helper()
	var sales []*market.SaleRecord
	require.NoError(t, e.store.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		sales, err = tx.Sales().ListByItem(ctx, itemID)
		return err
	}))
	return sales
}

// faultStore hands every unit of work a wrapped transaction.
type faultStore struct {
	store.Store
	wrap func(store.Tx) store.Tx
}

func (f faultStore) WithinTx(ctx context.Context, fn store.TxFunc) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, f.wrap(tx))
	})
}

type faultTx struct {
	store.Tx
	users store.UserRepository
	items store.ItemRepository
	sales store.SaleRepository
}

func (t faultTx) Items() store.ItemRepository {
	if t.items != nil {
		return t.items
	}
	return t.Tx.Items()
}

func (t faultTx) Users() store.UserRepository {
	if t.users != nil {
		return t.users
	}
	return t.Tx.Users()
}

func (t faultTx) Sales() store.SaleRepository {
	if t.sales != nil {
		return t.sales
	}
	return t.Tx.Sales()
}

// hidingUsers behaves as if one user row had been deleted.
type hidingUsers struct {
	store.UserRepository
	hidden uuid.UUID
}

func (r hidingUsers) Get(ctx context.Context, id uuid.UUID) (*market.User, error) {
	if id == r.hidden {
		return nil, fmt.Errorf("get user %s: %w", id, store.ErrNotFound)
	}
	return r.UserRepository.Get(ctx, id)
}

// hidingItems behaves as if one item row had been deleted.
type hidingItems struct {
	store.ItemRepository
	hidden uuid.UUID
}

func (r hidingItems) Get(ctx context.Context, id uuid.UUID) (*market.Item, error) {
	if id == r.hidden {
		return nil, fmt.Errorf("get item %s: %w", id, store.ErrNotFound)
	}
	return r.ItemRepository.Get(ctx, id)
}

var errDiskFull = errors.New("disk I/O error")

// failingSales refuses to record the sale of one auction.
type failingSales struct {
	store.SaleRepository
	auctionID uuid.UUID
}

func (r failingSales) Insert(ctx context.Context, sale *market.SaleRecord) error {
	if sale.AuctionID != nil && *sale.AuctionID == r.auctionID {
		return errDiskFull
	}
	return r.SaleRepository.Insert(ctx, sale)
}
