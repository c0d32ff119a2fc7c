// cmd/carmarket/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carmarket/internal/accounts"
	"carmarket/internal/auction"
	"carmarket/internal/config"
	"carmarket/internal/garage"
	"carmarket/internal/logging"
	"carmarket/internal/marketplace"
	"carmarket/internal/server"
	"carmarket/internal/telemetry"

	"github.com/sirupsen/logrus"
)

const limiterIdle = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Fatal("configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("carmarket stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, "carmarket", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.WithError(err).Warn("flush traces")
		}
	}()

	st, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	log.WithField("driver", cfg.DBDriver).Info("store ready")

	auctions := auction.NewService(st,
		auction.WithLogger(log.WithField("component", "auction")),
		auction.WithMinDuration(cfg.MinAuctionDuration),
	)
	listings := marketplace.NewService(st, log.WithField("component", "marketplace"), nil)
	cars := garage.NewService(st, log.WithField("component", "garage"), nil)
	users := accounts.NewService(st, log.WithField("component", "accounts"), nil)

	limiter := server.NewBidLimiter(cfg.BidRate, cfg.BidBurst)
	router := server.NewRouter(server.Handlers{
		Auctions: auction.NewHandler(auctions, log),
		Listings: marketplace.NewHandler(listings, log),
		Cars:     garage.NewHandler(cars, log),
		Users:    accounts.NewHandler(users, log),
	}, limiter, log.WithField("component", "http"))

	scheduler := auction.NewScheduler(auctions, cfg.SweepInterval, log.WithField("component", "sweeper"))
	go scheduler.Run(ctx)

	go func() {
		ticker := time.NewTicker(limiterIdle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Prune(limiterIdle)
			}
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("carmarket listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
