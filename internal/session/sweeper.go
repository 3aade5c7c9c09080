package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically removes expired sessions from a Store.
type Sweeper struct {
	store    Store
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{store: store, interval: interval, now: time.Now}
}

// Run sweeps once immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce removes expired sessions and logs the outcome. Failures are logged, not returned.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := s.store.DeleteExpired(sweepCtx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			logrus.WithError(err).Warn("expired session sweep failed")
		}
		return 0
	}
	if removed > 0 {
		logrus.WithField("removed", removed).Info("expired sessions swept")
	}
	return removed
}
