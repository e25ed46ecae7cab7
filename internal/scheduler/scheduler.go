// Package scheduler drives the periodic daily-stats recomputation.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
)

// StatsComputer is the slice of the stats service the scheduler needs.
type StatsComputer interface {
	ComputeDailyStats(ctx context.Context, date string) (ports.DailyStats, error)
}

const dateLayout = "2006-01-02"

// Scheduler recomputes yesterday's and today's stats rows on a fixed
// interval. Runs never overlap: a tick that fires while a run is still
// going is skipped.
type Scheduler struct {
	stats    StatsComputer
	interval time.Duration
	now      func() time.Time

	mu sync.Mutex
}

func New(stats StatsComputer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{
		stats:    stats,
		interval: interval,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled. One catch-up run fires immediately
// so a restart never leaves yesterday's row stale for a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	logging.Info(ctx, "stats scheduler started", slog.Duration("interval", s.interval))

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, "stats scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce computes the rows for yesterday and today. TryLock makes a
// long-running computation skip overlapping ticks instead of queueing.
func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.mu.TryLock() {
		logging.Warn(ctx, "stats run still in progress, skipping tick")
		return
	}
	defer s.mu.Unlock()

	today := s.now().UTC().Truncate(24 * time.Hour)
	for _, day := range []time.Time{today.AddDate(0, 0, -1), today} {
		date := day.Format(dateLayout)
		if _, err := s.stats.ComputeDailyStats(ctx, date); err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Error(ctx, "daily stats run failed",
				slog.String("date", date),
				slog.String("error", err.Error()),
			)
		}
	}
}
