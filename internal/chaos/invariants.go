// internal/chaos/invariants.go
package chaos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// Invariants are the marketplace's steady-state metrics, queried straight
// from the database so they see exactly what was committed.
type Invariants struct {
	db *sql.DB
}

func NewInvariants(db *sql.DB) *Invariants {
	return &Invariants{db: db}
}

func (inv *Invariants) count(ctx context.Context, query string) (float64, error) {
	var n int64
	if err := inv.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return float64(n), nil
}

// DoubleSales counts auctions settled more than once.
func (inv *Invariants) DoubleSales() Metric {
	return Metric{
		Name: "auctions_with_multiple_sales",
		Query: func(ctx context.Context) (float64, error) {
			return inv.count(ctx, `
				SELECT COUNT(*) FROM (
					SELECT auction_id FROM sale_records
					WHERE auction_id IS NOT NULL
					GROUP BY auction_id
					HAVING COUNT(*) > 1
				) dup`)
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// NegativeBalances counts users below zero.
func (inv *Invariants) NegativeBalances() Metric {
	return Metric{
		Name: "negative_balances",
		Query: func(ctx context.Context) (float64, error) {
			return inv.count(ctx, `SELECT COUNT(*) FROM users WHERE CAST(balance AS REAL) < 0`)
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// StrandedItems counts items left on_auction without any active auction.
func (inv *Invariants) StrandedItems() Metric {
	return Metric{
		Name: "stranded_items",
		Query: func(ctx context.Context) (float64, error) {
			return inv.count(ctx, `
				SELECT COUNT(*) FROM items i
				WHERE i.status = 'on_auction'
				AND NOT EXISTS (
					SELECT 1 FROM auctions a
					WHERE a.item_id = i.id AND a.status = 'active'
				)`)
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// LeaderMismatches counts active auctions whose price and leader disagree:
// a leader without a bid or a bid without a leader.
func (inv *Invariants) LeaderMismatches() Metric {
	return Metric{
		Name: "leader_mismatches",
		Query: func(ctx context.Context) (float64, error) {
			return inv.count(ctx, `
				SELECT COUNT(*) FROM auctions
				WHERE status = 'active'
				AND ((current_bidder_id IS NULL AND CAST(current_bid AS REAL) > 0)
				  OR (current_bidder_id IS NOT NULL AND CAST(current_bid AS REAL) <= 0))`)
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// UnloggedSettlements counts terminal auctions whose activity log does not
// end in exactly one closing event.
func (inv *Invariants) UnloggedSettlements() Metric {
	return Metric{
		Name: "unlogged_settlements",
		Query: func(ctx context.Context) (float64, error) {
			return inv.count(ctx, `
				SELECT COUNT(*) FROM auctions a
				WHERE a.status IN ('finished', 'cancelled')
				AND (
					SELECT COUNT(*) FROM auction_events e
					WHERE e.auction_id = a.id
					AND e.event_type IN ('auction_finished', 'auction_cancelled')
				) <> 1`)
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// Money is every balance plus the bids held by active auctions.
func (inv *Invariants) Money(ctx context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	add := func(query string) error {
		rows, err := inv.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v decimal.Decimal
			if err := rows.Scan(&v); err != nil {
				return err
			}
			total = total.Add(v)
		}
		return rows.Err()
	}
	if err := add(`SELECT balance FROM users`); err != nil {
		return decimal.Zero, fmt.Errorf("sum balances: %w", err)
	}
	if err := add(`SELECT current_bid FROM auctions WHERE status = 'active' AND current_bidder_id IS NOT NULL`); err != nil {
		return decimal.Zero, fmt.Errorf("sum held bids: %w", err)
	}
	return total, nil
}

// MoneyDrift reports how far Money has moved from expected(), in currency
// units. Money only enters through deposits, so expected is the starting
// total plus whatever was deposited since.
func (inv *Invariants) MoneyDrift(expected func() decimal.Decimal) Metric {
	return Metric{
		Name: "money_drift",
		Query: func(ctx context.Context) (float64, error) {
			total, err := inv.Money(ctx)
			if err != nil {
				return 0, err
			}
			return total.Sub(expected()).Abs().InexactFloat64(), nil
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}
