// cmd/chaos/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carmarket/internal/accounts"
	"carmarket/internal/auction"
	"carmarket/internal/chaos"
	"carmarket/internal/config"
	"carmarket/internal/garage"
	"carmarket/internal/logging"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type stormEnv struct {
	Bidders       int           `env:"CARMARKET_STORM_BIDDERS" envDefault:"20"`
	Auctions      int           `env:"CARMARKET_STORM_AUCTIONS" envDefault:"5"`
	BidsPerBidder int           `env:"CARMARKET_STORM_BIDS" envDefault:"25"`
	AuctionLength time.Duration `env:"CARMARKET_STORM_AUCTION_LENGTH" envDefault:"2s"`
	Observe       time.Duration `env:"CARMARKET_STORM_OBSERVE" envDefault:"1s"`
	Deposit       string        `env:"CARMARKET_STORM_DEPOSIT" envDefault:"5000"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	var storm stormEnv
	if err := env.Parse(&storm); err != nil {
		logrus.WithError(err).Fatal("parse storm settings")
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Fatal("configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	held, err := run(ctx, cfg, storm, log)
	if err != nil {
		log.WithError(err).Fatal("chaos run failed")
	}
	if !held {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, settings stormEnv, log *logrus.Logger) (bool, error) {
	st, err := cfg.OpenStore(ctx)
	if err != nil {
		return false, err
	}
	defer st.Close()

	deposit, err := decimal.NewFromString(settings.Deposit)
	if err != nil {
		return false, err
	}
	stormCfg := chaos.DefaultStormConfig()
	stormCfg.Bidders = settings.Bidders
	stormCfg.Auctions = settings.Auctions
	stormCfg.BidsPerBidder = settings.BidsPerBidder
	stormCfg.AuctionLength = settings.AuctionLength
	stormCfg.Observe = settings.Observe
	stormCfg.Deposit = deposit

	mp := chaos.Marketplace{
		Accounts: accounts.NewService(st, log, nil),
		Garage:   garage.NewService(st, log, nil),
		// Storm auctions last seconds, far below the public minimum.
		Auctions: auction.NewService(st, auction.WithLogger(log), auction.WithMinDuration(0)),
	}
	storm, err := chaos.NewBidStorm(ctx, st.DB(), mp, stormCfg, log.WithField("experiment", "bid-storm"))
	if err != nil {
		return false, err
	}

	engine := chaos.NewEngine(log)
	engine.Register(storm.Experiment())

	held := true
	for _, result := range engine.RunAll(ctx, 5*time.Second) {
		held = held && result != nil && result.HypothesisHeld
	}
	accepted, rejected, failures := storm.Stats()
	log.WithFields(logrus.Fields{
		"accepted":       accepted,
		"rejected":       rejected,
		"store_failures": failures,
		"hypothesis":     held,
	}).Info("chaos game day finished")
	return held, nil
}
