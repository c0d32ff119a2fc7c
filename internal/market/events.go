// internal/market/events.go
package market

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuctionEventType names an entry in an auction's activity log.
type AuctionEventType string

const (
	EventAuctionCreated   AuctionEventType = "auction_created"
	EventBidPlaced        AuctionEventType = "bid_placed"
	EventAuctionFinished  AuctionEventType = "auction_finished"
	EventAuctionCancelled AuctionEventType = "auction_cancelled"
)

// AuctionEvent is one immutable entry of an auction's activity log. Version
// counts from 1 per auction; ID orders events across all auctions.
type AuctionEvent struct {
	ID        int64            `json:"id"`
	AuctionID uuid.UUID        `json:"auction_id"`
	Type      AuctionEventType `json:"type"`
	Data      json.RawMessage  `json:"data"`
	Version   int              `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
}
