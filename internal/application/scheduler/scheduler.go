package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/arca-scheduler/internal/application/usecases"
)

// Runner is one booking pass over all users.
type Runner interface {
	Execute(ctx context.Context) (usecases.RunResult, error)
}

// Scheduler drives booking runs on a fixed interval for deployments without
// an external cron. Runs never overlap: a tick that finds the previous run
// still going is dropped.
type Scheduler struct {
	Runner     Runner
	Interval   time.Duration
	RunTimeout time.Duration
	Log        *zap.Logger
}

func (s *Scheduler) Run(ctx context.Context) error {
	if s.Interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	log.Info("scheduler started", zap.Duration("interval", s.Interval))
	// kick immediately
	s.tick(ctx, log)

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return ctx.Err()
		case <-t.C:
			s.tick(ctx, log)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, log *zap.Logger) {
	if s.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RunTimeout)
		defer cancel()
	}
	res, err := s.Runner.Execute(ctx)
	switch {
	case errors.Is(err, usecases.ErrRunInProgress):
		log.Debug("previous run still in progress, tick skipped")
	case err != nil:
		log.Error("scheduled run failed", zap.Error(err), zap.Int("booked", res.Booked))
	default:
		log.Info("scheduled run done",
			zap.Int("checked", res.Checked),
			zap.Int("booked", res.Booked),
			zap.Int("failed", res.Failed))
	}
}
