// internal/auction/domain.go
package auction

import (
	"time"

	"carmarket/internal/market"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome describes what one Finalize call did.
type Outcome string

const (
	// OutcomeNoop means the auction was already terminal.
	OutcomeNoop Outcome = "noop"
	// OutcomeUnsold means the auction closed without bids and the item went back to its owner.
	OutcomeUnsold Outcome = "unsold"
	// OutcomeSold means the leader received the item and the seller was paid.
	OutcomeSold Outcome = "sold"
	// OutcomeRecovered means a participant or the item was missing; the
	// auction closed and no funds moved.
	OutcomeRecovered Outcome = "recovered"
)

// Terms are the seller-chosen parameters of a new auction.
type Terms struct {
	ItemID     uuid.UUID       `json:"item_id"`
	StartPrice decimal.Decimal `json:"start_price"`
	BidStep    decimal.Decimal `json:"bid_step"`
	EndsAt     time.Time       `json:"ends_at"`
}

// Details is an auction together with its bid history, newest first.
type Details struct {
	*market.Auction
	Bids []*market.Bid `json:"bids"`
}

// SweepResult summarizes one pass over the active auctions.
type SweepResult struct {
	Checked   int `json:"checked"`
	Finalized int `json:"finalized"`
	Failed    int `json:"failed"`
}
