package booking

import (
	"context"
	"time"

	"go.uber.org/zap"

	"staybook/metrics"
)

// Completer is the slice of Service the sweeper needs.
type Completer interface {
	CompleteExpired(ctx context.Context) (int, error)
}

// Sweeper periodically completes expired confirmed bookings. It is the only
// component that drives completion; reads never trigger status changes.
type Sweeper struct {
	completer Completer
	interval  time.Duration
	logger    *zap.Logger
}

func NewSweeper(completer Completer, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		completer: completer,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.completer.CompleteExpired(ctx)
	if err != nil {
		metrics.SweepRuns.WithLabelValues("error").Inc()
		s.logger.Error("completion sweep failed", zap.Error(err))
		return
	}
	metrics.SweepRuns.WithLabelValues("ok").Inc()
	metrics.SweepCompletedBookings.Add(float64(n))
	if n > 0 {
		s.logger.Info("completion sweep finished", zap.Int("completed", n))
	}
}
