// internal/chaos/bidstorm.go
package chaos

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"carmarket/internal/accounts"
	"carmarket/internal/auction"
	"carmarket/internal/garage"
	"carmarket/internal/logging"
	"carmarket/internal/market"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// StormConfig sizes a bid storm.
type StormConfig struct {
	Bidders       int
	Auctions      int
	BidsPerBidder int
	// AuctionLength is how long each seeded auction runs. Bids keep coming
	// after it ends so late bids race the sweeper.
	AuctionLength time.Duration
	SweepEvery    time.Duration
	Deposit       decimal.Decimal
	Observe       time.Duration
	Seed          uint64
}

// DefaultStormConfig is a storm that finishes in a few seconds.
func DefaultStormConfig() StormConfig {
	return StormConfig{
		Bidders:       20,
		Auctions:      5,
		BidsPerBidder: 25,
		AuctionLength: 2 * time.Second,
		SweepEvery:    100 * time.Millisecond,
		Deposit:       decimal.NewFromInt(5000),
		Observe:       time.Second,
		Seed:          uint64(time.Now().UnixNano()),
	}
}

// Marketplace is the set of services a storm drives.
type Marketplace struct {
	Accounts accounts.Service
	Garage   garage.Service
	Auctions auction.Service
}

// BidStorm fires concurrent bids and sweeps at a handful of auctions.
type BidStorm struct {
	cfg StormConfig
	mp  Marketplace
	inv *Invariants
	log logrus.FieldLogger

	mu       sync.Mutex
	expected decimal.Decimal
	run      string
	auctions []uuid.UUID
	bidders  []uuid.UUID
	deadline time.Time

	accepted  atomic.Int64
	rejected  atomic.Int64
	failures  atomic.Int64
	finalized atomic.Int64
}

// NewBidStorm snapshots the money already in db so drift is measured from
// this point.
func NewBidStorm(ctx context.Context, db *sql.DB, mp Marketplace, cfg StormConfig, logger logrus.FieldLogger) (*BidStorm, error) {
	if cfg.Bidders < 2 || cfg.Auctions < 1 || cfg.BidsPerBidder < 1 {
		return nil, fmt.Errorf("storm needs at least 2 bidders, 1 auction and 1 bid per bidder")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	inv := NewInvariants(db)
	baseline, err := inv.Money(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot money: %w", err)
	}
	return &BidStorm{
		cfg:      cfg,
		mp:       mp,
		inv:      inv,
		log:      logger,
		expected: baseline,
		run:      uuid.NewString()[:8],
	}, nil
}

// Experiment wires the storm into the engine.
func (b *BidStorm) Experiment() Experiment {
	metrics := []Metric{
		b.inv.DoubleSales(),
		b.inv.NegativeBalances(),
		b.inv.StrandedItems(),
		b.inv.LeaderMismatches(),
		b.inv.UnloggedSettlements(),
		b.inv.MoneyDrift(b.expectedMoney),
	}
	validation := make([]Assertion, 0, len(metrics))
	for _, m := range metrics {
		validation = append(validation, Assertion{
			Metric:    m.Name,
			Condition: func(v float64) bool { return v == 0 },
			Message:   m.Name + " must stay at zero",
		})
	}

	return Experiment{
		Name:        "concurrent-bid-storm",
		Hypothesis:  "Racing bids, late bids and sweeps never double-settle an auction, overdraw a user or create or destroy money",
		SteadyState: metrics,
		Method: []Action{
			{Type: "seed", Target: "marketplace", Execute: b.seed},
			{Type: "concurrent-requests", Target: "auction-engine", Execute: b.storm},
		},
		Rollback: []Action{
			{Type: "drain", Target: "auction-engine", Execute: b.drain},
		},
		Validation:  validation,
		Duration:    b.cfg.Observe,
		SampleEvery: b.cfg.Observe / 4,
	}
}

func (b *BidStorm) expectedMoney() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expected
}

// seed registers funded bidders, then sellers with approved cars on auction.
func (b *BidStorm) seed(ctx context.Context) error {
	const password = "storm-password"

	for i := 0; i < b.cfg.Bidders; i++ {
		name := fmt.Sprintf("bidder-%s-%d", b.run, i)
		bidder, err := b.mp.Accounts.Register(ctx, name, name+"@storm.test", password)
		if err != nil {
			return fmt.Errorf("register bidder: %w", err)
		}
		if _, err := b.mp.Accounts.Deposit(ctx, bidder.ID, b.cfg.Deposit); err != nil {
			return fmt.Errorf("fund bidder: %w", err)
		}
		b.mu.Lock()
		b.expected = b.expected.Add(b.cfg.Deposit)
		b.mu.Unlock()
		b.bidders = append(b.bidders, bidder.ID)
	}

	for i := 0; i < b.cfg.Auctions; i++ {
		name := fmt.Sprintf("seller-%s-%d", b.run, i)
		seller, err := b.mp.Accounts.Register(ctx, name, name+"@storm.test", password)
		if err != nil {
			return fmt.Errorf("register seller: %w", err)
		}
		car, err := b.mp.Garage.AddCar(ctx, seller.ID, fmt.Sprintf("Storm car %d", i), "")
		if err != nil {
			return fmt.Errorf("add car: %w", err)
		}
		if _, err := b.mp.Garage.Moderate(ctx, car.ID, true); err != nil {
			return fmt.Errorf("approve car: %w", err)
		}
		endsAt := time.Now().Add(b.cfg.AuctionLength)
		a, err := b.mp.Auctions.CreateAuction(ctx, seller.ID, auction.Terms{
			ItemID:     car.ID,
			StartPrice: decimal.NewFromInt(100),
			BidStep:    decimal.NewFromInt(5),
			EndsAt:     endsAt,
		})
		if err != nil {
			return fmt.Errorf("create auction: %w", err)
		}
		b.auctions = append(b.auctions, a.ID)
		b.deadline = endsAt
	}

	b.log.WithFields(logrus.Fields{
		"auctions": len(b.auctions),
		"bidders":  len(b.bidders),
		"deadline": b.deadline,
	}).Info("storm seeded")
	return nil
}

// storm runs every bidder concurrently next to a tight sweep loop.
func (b *BidStorm) storm(ctx context.Context) error {
	if len(b.auctions) == 0 {
		return fmt.Errorf("storm not seeded")
	}

	sweepCtx, stopSweeping := context.WithCancel(ctx)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		ticker := time.NewTicker(b.cfg.SweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				b.sweep(sweepCtx)
			}
		}
	}()

	var wg sync.WaitGroup
	for i, bidderID := range b.bidders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(b.cfg.Seed, uint64(i)))
			// Spread the attempts over the auction's life and a little past it.
			pause := b.cfg.AuctionLength * 3 / 2 / time.Duration(b.cfg.BidsPerBidder)
			for n := 0; n < b.cfg.BidsPerBidder; n++ {
				if ctx.Err() != nil {
					return
				}
				b.bid(ctx, rng, bidderID)
				time.Sleep(time.Duration(rng.Int64N(int64(pause) + 1)))
			}
		}()
	}
	wg.Wait()

	stopSweeping()
	<-sweeperDone

	b.log.WithFields(logrus.Fields{
		"accepted":       b.accepted.Load(),
		"rejected":       b.rejected.Load(),
		"store_failures": b.failures.Load(),
		"finalized":      b.finalized.Load(),
	}).Info("storm finished")
	return ctx.Err()
}

func (b *BidStorm) bid(ctx context.Context, rng *rand.Rand, bidderID uuid.UUID) {
	auctionID := b.auctions[rng.IntN(len(b.auctions))]
	details, err := b.mp.Auctions.GetAuction(ctx, auctionID)
	if err != nil {
		b.failures.Add(1)
		return
	}
	// Bid off a possibly stale read so some attempts lose the race.
	raise := details.BidStep.Mul(decimal.NewFromInt(int64(rng.IntN(4))))
	amount := details.MinAcceptableBid().Add(raise)

	_, err = b.mp.Auctions.PlaceBid(ctx, bidderID, auctionID, amount)
	switch {
	case err == nil:
		b.accepted.Add(1)
	case market.KindOf(err) == market.KindStoreFailure:
		b.failures.Add(1)
		b.log.WithError(err).Warn("bid hit a store failure")
	default:
		b.rejected.Add(1)
	}
}

func (b *BidStorm) sweep(ctx context.Context) {
	result, err := b.mp.Auctions.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			b.log.WithError(err).Warn("storm sweep failed")
		}
		return
	}
	b.finalized.Add(int64(result.Finalized))
}

// drain waits for every storm auction to expire and sweeps until all of
// them are settled.
func (b *BidStorm) drain(ctx context.Context) error {
	if wait := time.Until(b.deadline); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	result, err := b.mp.Auctions.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("final sweep: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("final sweep left %d auctions unsettled", result.Failed)
	}
	b.finalized.Add(int64(result.Finalized))
	return nil
}

// Stats returns accepted, rejected and store-failed bid counts.
func (b *BidStorm) Stats() (accepted, rejected, failures int64) {
	return b.accepted.Load(), b.rejected.Load(), b.failures.Load()
}
