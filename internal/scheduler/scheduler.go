// Package scheduler drives fixed-interval background refreshes.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per interval.
type TickFunc func(ctx context.Context) error

// Scheduler runs a tick function on a fixed interval until cancelled. A
// failing tick is logged and the loop keeps going; the serving path falls
// back to read-triggered refreshes.
type Scheduler struct {
	interval time.Duration
	logger   zerolog.Logger
}

func New(interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{interval: interval, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		start := time.Now()
		if err := tick(ctx); err != nil {
			s.logger.Error().Err(err).Msg("scheduled refresh failed")
			continue
		}
		s.logger.Debug().Dur("elapsed", time.Since(start)).Msg("scheduled refresh complete")
	}
}
