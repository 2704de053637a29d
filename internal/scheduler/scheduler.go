package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval.
type TickFunc func(ctx context.Context, now time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Name         string
	Interval     time.Duration
	StartupDelay time.Duration
	RunOnStart   bool
}

// Scheduler drives repeated execution of one job at a fixed interval,
// optionally with one delayed run shortly after process start.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Str("job", opts.Name).Logger()}
}

// Run blocks, invoking the tick function until ctx is cancelled. Tick errors
// are logged, never fatal: the next interval is the retry mechanism.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if s.opts.RunOnStart {
		s.execute(ctx, tick)
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.execute(ctx, tick)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc) {
	now := time.Now().UTC()
	s.logger.Debug().Time("at", now).Msg("executing scheduled tick")
	if err := tick(ctx, now); err != nil {
		s.logger.Error().Err(err).Time("at", now).Msg("tick execution failed")
	}
}
