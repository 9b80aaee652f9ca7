package runner

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/felixgeelhaar/jacinta/internal/log"
)

// Passer runs one pass. *Runner implements it.
type Passer interface {
	RunPendingPass(ctx context.Context) (*PassReport, error)
}

// Scheduler runs passes back to back on a fixed interval. A pass that
// overruns the interval delays the next one instead of overlapping it.
type Scheduler struct {
	passer   Passer
	interval time.Duration
	logger   *log.Logger

	// OnPass, if set, is called after every pass.
	OnPass func(*PassReport, error)
}

// NewScheduler creates a Scheduler. interval <= 0 uses DefaultInterval.
func NewScheduler(p Passer, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Scheduler{
		passer:   p,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Run executes one pass immediately and then one per interval until ctx is
// done. Pass errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	report, err := s.passer.RunPendingPass(ctx)
	if s.OnPass != nil {
		s.OnPass(report, err)
	}

	switch {
	case err == nil:
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return
	default:
		s.logger.WithError(err).Error("runner pass failed")
		return
	}

	for _, taskErr := range report.Errors() {
		s.logger.WithError(taskErr).Warn("task pass did not finish")
	}
}
