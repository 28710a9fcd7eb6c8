// Package scheduler runs the expiry sweep on a fixed interval inside the
// server process.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/event-seat-manager/internal/reservation"
)

type sweeper interface {
	Sweep(ctx context.Context) (reservation.SweepResult, error)
}

type Scheduler struct {
	sweeper  sweeper
	interval time.Duration
	logger   *slog.Logger
}

func New(s sweeper, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweeper:  s,
		interval: interval,
		logger:   logger,
	}
}

// Start sweeps every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
	}
	if res.LocksRemoved > 0 || res.OffersExpired > 0 || res.OffersIssued > 0 {
		s.logger.Info("sweep settled events",
			"events", res.Events,
			"locks_removed", res.LocksRemoved,
			"offers_expired", res.OffersExpired,
			"offers_issued", res.OffersIssued,
		)
	}
}
