// Package sweeper removes expired holds in the background. The hold
// creation path also purges inline; the sweeper guarantees a bound on
// how long an abandoned hold can shadow a slot.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"prohair/internal/metrics"
)

// Store is the purge operation the sweeper drives.
type Store interface {
	PurgeExpiredHolds(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically purges expired holds.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
}

// New creates a sweeper with the given interval.
func New(store Store, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Purge
// failures are logged and the loop continues; a broken sweep must not
// take the process down.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("hold sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("hold sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.store.PurgeExpiredHolds(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("hold sweep failed")
		return
	}
	if n > 0 {
		metrics.AddHoldsSwept(n)
		s.logger.Info().Int64("purged", n).Msg("expired holds swept")
	}
}
