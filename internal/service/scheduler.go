package service

import (
	"context"
	"time"

	"github.com/kvcfdd/yunzai-go/internal/constants"
	"github.com/kvcfdd/yunzai-go/internal/metrics"

	"github.com/sirupsen/logrus"
)

// ExpiredCleaner purges expired rows and reports how many were removed.
type ExpiredCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Scheduler periodically purges expired key-value entries so abandoned
// request records do not accumulate.
type Scheduler struct {
	cleaner       ExpiredCleaner
	intervalHours int
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewScheduler(cleaner ExpiredCleaner, intervalHours int, logger *logrus.Logger) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = constants.CleanupSchedulerIntervalHours
	}
	return &Scheduler{
		cleaner:       cleaner,
		intervalHours: intervalHours,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.intervalHours) * time.Hour)
	defer ticker.Stop()

	s.logger.Info("Starting cleanup scheduler")

	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	purged, err := s.cleaner.CleanupExpired(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to cleanup expired entries")
		metrics.IncrementCounter("cleanup_failures_total", nil)
		return
	}

	metrics.IncrementCounter("cleanup_runs_total", nil)
	metrics.SetGauge("cleanup_last_purged", float64(purged), nil)
	if purged > 0 {
		s.logger.WithField("purged", purged).Info("Removed expired entries")
	}
}
