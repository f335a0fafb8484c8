// Package scheduler wires up the cron trigger that periodically runs a
// full ingestion cycle. It holds no business state: the same ingestion
// behaviour is reachable through the admin endpoint or an external cron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"crewlink/ingestion-service/internal/model"
)

// Runner is the slice of the sync orchestrator the scheduler needs.
type Runner interface {
	InProgress() bool
	Sync(ctx context.Context) (model.SyncResult, error)
}

// Scheduler wraps robfig/cron and manages the recurring sync trigger.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string // cron spec, e.g. "@every 30m"
	log    *zap.SugaredLogger
}

// New creates a Scheduler that fires every interval.
func New(runner Runner, interval time.Duration, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   fmt.Sprintf("@every %s", interval),
		log:    log,
	}
}

// Start registers the job and starts the trigger. Also runs one cycle
// immediately so the feed is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Infow("scheduler started", "spec", s.spec)

	go s.tick(ctx)

	return nil
}

// Stop cancels the recurring trigger. Safe to call when already stopped.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Infow("scheduler stopped")
}

// tick runs one sync unless the previous one is still in flight, in which
// case this tick is dropped entirely — missed ticks are never queued.
func (s *Scheduler) tick(ctx context.Context) {
	if s.runner.InProgress() {
		s.log.Infow("previous sync still running, skipping tick")
		return
	}

	res, err := s.runner.Sync(ctx)
	if err != nil {
		s.log.Errorw("sync failed", "err", err)
		return
	}
	if res.Skipped {
		return
	}
	s.log.Infow("scheduled sync finished",
		"fetched", res.TotalFetched,
		"new", res.NewJobsAdded,
		"errors", len(res.Errors),
	)
}
