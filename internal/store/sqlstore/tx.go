// internal/store/sqlstore/tx.go

// Package sqlstore implements the store repositories over database/sql.
// Adapters supply a Dialect and own connection setup and transaction retry.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"carmarket/internal/store"
)

// Dialect captures what differs between the supported databases.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2, ...) instead of "?".
	NumberedParams bool
	// LockClause is appended to single-row reads made for update.
	LockClause string
	// IsUniqueViolation reports unique/primary key constraint failures.
	IsUniqueViolation func(error) bool
}

// Rebind rewrites "?" placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.NumberedParams {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tx binds repositories to one *sql.Tx.
type Tx struct {
	tx *sql.Tx
	d  Dialect
}

// NewTx wraps an open transaction.
func NewTx(tx *sql.Tx, d Dialect) *Tx {
	return &Tx{tx: tx, d: d}
}

func (t *Tx) Users() store.UserRepository       { return users{t} }
func (t *Tx) Items() store.ItemRepository       { return items{t} }
func (t *Tx) Auctions() store.AuctionRepository { return auctions{t} }
func (t *Tx) Bids() store.BidRepository         { return bids{t} }
func (t *Tx) Listings() store.ListingRepository { return listings{t} }
func (t *Tx) Sales() store.SaleRepository       { return sales{t} }
func (t *Tx) Events() store.EventRepository     { return events{t} }

var _ store.Tx = (*Tx)(nil)

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.d.Rebind(query), args...)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.d.Rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.d.Rebind(query), args...)
}

// forUpdate appends the dialect's row lock to a single-row select.
func (t *Tx) forUpdate(query string) string {
	return query + t.d.LockClause
}

// insert runs an INSERT and reports unique violations as conflictErr.
func (t *Tx) insert(ctx context.Context, conflictErr error, query string, args ...any) error {
	_, err := t.exec(ctx, query, args...)
	if err == nil {
		return nil
	}
	if t.d.IsUniqueViolation != nil && t.d.IsUniqueViolation(err) {
		if conflictErr != nil {
			return conflictErr
		}
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

// updateOne runs an UPDATE that must touch exactly one row.
func (t *Tx) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := t.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != 1 {
		return store.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
