package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron and drives the recurring sync runs and the
// low-frequency retention sweep. Overlap protection lives in the runner's
// per-source lease, not here.
type Scheduler struct {
	cron      *cron.Cron
	syncSpec  string
	sweepSpec string
	runSync   func(context.Context)
	runSweep  func(context.Context)
	logger    *slog.Logger
}

// New creates a scheduler with standard five-field cron specs.
func New(syncSpec, sweepSpec string, runSync, runSweep func(context.Context), logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		syncSpec:  syncSpec,
		sweepSpec: sweepSpec,
		runSync:   runSync,
		runSweep:  runSweep,
		logger:    logger,
	}
}

// Start registers both jobs and starts the cron loop. The first sync runs
// immediately so a fresh deployment does not sit empty until the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.syncSpec, func() { s.runSync(ctx) }); err != nil {
		return fmt.Errorf("registering sync schedule %q: %w", s.syncSpec, err)
	}
	if _, err := s.cron.AddFunc(s.sweepSpec, func() { s.runSweep(ctx) }); err != nil {
		return fmt.Errorf("registering sweep schedule %q: %w", s.sweepSpec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "sync_spec", s.syncSpec, "sweep_spec", s.sweepSpec)

	go s.runSync(ctx)

	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}
