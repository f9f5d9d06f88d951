package recurringinvoices

import (
	"context"
	"log/slog"
	"time"
)

// minInterval is the floor for the scheduler interval. Anything lower would
// hammer the database for a monthly process.
const minInterval = 30 * time.Second

// RunNotifier receives a summary after a scheduled run that generated
// invoices. Notification failures never fail the run.
type RunNotifier interface {
	NotifyGenerationRun(ctx context.Context, runDate time.Time, stats *GenerationStats) error
}

// Scheduler periodically triggers generation runs through the runner
type Scheduler struct {
	runner   *Runner
	notifier RunNotifier
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewScheduler creates a new scheduler. A nil notifier disables run
// notifications.
func NewScheduler(runner *Runner, notifier RunNotifier, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval < minInterval {
		interval = minInterval
	}
	return &Scheduler{
		runner:   runner,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the scheduler loop. It runs once immediately, then on every
// tick. Run errors are logged and recorded in the run status but never stop
// the loop.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("recurring invoice scheduler started", "interval", s.interval.String())

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.stopChan:
			s.logger.Info("recurring invoice scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("recurring invoice scheduler context canceled")
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	stats, err := s.runner.RunNow(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("scheduled generation run failed", "error", err)
		return
	}
	if s.notifier != nil && stats.Generated > 0 {
		if err := s.notifier.NotifyGenerationRun(ctx, time.Now().UTC(), stats); err != nil {
			s.logger.Error("failed to send generation summary", "error", err)
		}
	}
}

// Stop signals the loop to exit and waits for it, at most timeout.
func (s *Scheduler) Stop(timeout time.Duration) {
	close(s.stopChan)
	select {
	case <-s.doneChan:
	case <-time.After(timeout):
		s.logger.Warn("scheduler did not stop within timeout")
	}
}
