// internal/auction/scheduler.go
package auction

import (
	"context"
	"time"

	"carmarket/internal/logging"

	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=scheduler.go -destination=mock_sweeper_test.go -package=auction

// DefaultSweepInterval is used when the scheduler is given no interval.
const DefaultSweepInterval = 15 * time.Second

// Sweeper is the work a scheduler tick performs.
type Sweeper interface {
	SweepExpired(ctx context.Context) (SweepResult, error)
}

// Scheduler periodically finalizes expired auctions.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	log      logrus.FieldLogger
}

// NewScheduler builds a scheduler ticking every interval.
func NewScheduler(sweeper Sweeper, interval time.Duration, logger logrus.FieldLogger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{sweeper: sweeper, interval: interval, log: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.WithField("interval", s.interval.String()).Info("sweep scheduler started")
	defer s.log.Info("sweep scheduler stopped")

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick never returns an error; failures wait for the next tick.
func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	result, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		s.log.WithError(err).Warn("sweep failed")
		return
	}
	if result.Checked == 0 {
		return
	}
	entry := s.log.WithFields(logrus.Fields{
		"checked":   result.Checked,
		"finalized": result.Finalized,
		"failed":    result.Failed,
	})
	if result.Failed > 0 {
		entry.Warn("sweep finished with failures")
		return
	}
	entry.Info("sweep finished")
}
