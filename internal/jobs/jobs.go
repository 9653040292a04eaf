package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// every runs fn on each tick until ctx is done, giving each run its own
// timeout.
func every(ctx context.Context, interval, timeout time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				fn(tickCtx)
				cancel()
			}
		}
	}()
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// StartHealthProbe pings the store immediately and then every interval,
// reporting the outcome through report.
func StartHealthProbe(ctx context.Context, interval time.Duration, store Pinger, report func(up bool), logger *zap.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := interval / 2
	probe := func(ctx context.Context) {
		probeStore(ctx, store, report, logger)
	}

	initCtx, cancel := context.WithTimeout(ctx, timeout)
	probe(initCtx)
	cancel()
	every(ctx, interval, timeout, probe)
}

func probeStore(ctx context.Context, store Pinger, report func(up bool), logger *zap.Logger) {
	if err := store.Ping(ctx); err != nil {
		logger.Warn("store ping failed", zap.Error(err))
		report(false)
		return
	}
	report(true)
}

type ReadingPurger interface {
	DeleteReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartRetentionJob deletes readings older than retention, with their
// alerts. A non-positive retention disables the job.
func StartRetentionJob(ctx context.Context, retention, interval time.Duration, store ReadingPurger, logger *zap.Logger) {
	if retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	logger.Info("reading retention enabled", zap.Duration("retention", retention), zap.Duration("interval", interval))
	every(ctx, interval, time.Minute, func(ctx context.Context) {
		purgeReadings(ctx, store, retention, time.Now().UTC(), logger)
	})
}

func purgeReadings(ctx context.Context, store ReadingPurger, retention time.Duration, now time.Time, logger *zap.Logger) int64 {
	removed, err := store.DeleteReadingsBefore(ctx, now.Add(-retention))
	if err != nil {
		logger.Error("reading retention failed", zap.Error(err))
		return 0
	}
	if removed > 0 {
		logger.Info("reading retention removed readings", zap.Int64("count", removed))
	}
	return removed
}
