// Package tasks runs the expiry sweep as an asynq periodic task so that
// several replicas share one schedule through Redis.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/iliyamo/event-seat-manager/internal/reservation"
)

const TypeSweep = "reservation:sweep"

type sweeper interface {
	Sweep(ctx context.Context) (reservation.SweepResult, error)
}

// NewSweepTask builds the sweep task.  Uniqueness keeps replicas that
// share a schedule from queueing the same sweep twice.
func NewSweepTask(interval time.Duration) *asynq.Task {
	return asynq.NewTask(TypeSweep, nil,
		asynq.MaxRetry(0),
		asynq.Timeout(interval),
		asynq.Unique(interval),
	)
}

// CronSpec returns the scheduler spec for interval.
func CronSpec(interval time.Duration) string {
	return "@every " + interval.String()
}

// SweepHandler processes sweep tasks.
type SweepHandler struct {
	sweeper sweeper
	log     *slog.Logger
}

func NewSweepHandler(s sweeper, log *slog.Logger) *SweepHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SweepHandler{sweeper: s, log: log}
}

func (h *SweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	res, err := h.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", t.Type(), err)
	}
	h.log.Debug("sweep task done",
		"events", res.Events,
		"locks_removed", res.LocksRemoved,
		"offers_expired", res.OffersExpired,
		"offers_issued", res.OffersIssued,
	)
	return nil
}

// NewServeMux routes task types to their handlers.
func NewServeMux(s sweeper, log *slog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeSweep, NewSweepHandler(s, log))
	return mux
}

// Run starts the asynq worker and scheduler and blocks until ctx is done.
func Run(ctx context.Context, redisOpt asynq.RedisConnOpt, s sweeper, interval time.Duration, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"default": 1},
		LogLevel:    asynq.WarnLevel,
	})
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		LogLevel: asynq.WarnLevel,
	})
	if _, err := scheduler.Register(CronSpec(interval), NewSweepTask(interval)); err != nil {
		return fmt.Errorf("register sweep: %w", err)
	}

	if err := srv.Start(NewServeMux(s, log)); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		srv.Shutdown()
		return fmt.Errorf("start asynq scheduler: %w", err)
	}
	log.Info("asynq sweep scheduled", "spec", CronSpec(interval))

	<-ctx.Done()
	scheduler.Shutdown()
	srv.Shutdown()
	return nil
}
