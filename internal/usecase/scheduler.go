package usecase

import (
	"context"
	"log/slog"
	"time"

	"PaperHarvester/internal/ports"
)

// Scheduler wires the interval driver with a crawl run.
type Scheduler struct {
	driver ports.Scheduler
	run    func(ctx context.Context, trigger time.Time) error
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, run func(context.Context, time.Time) error, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, run: run, logger: logger}
}

// Start registers the run with the provided scheduler. Run errors are logged;
// the next tick tries again.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.run == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if err := s.run(ctx, trigger); err != nil {
			s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Wait blocks until the driver loop exits.
func (s *Scheduler) Wait() {
	if s.driver == nil {
		return
	}
	if done := s.driver.Done(); done != nil {
		<-done
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
