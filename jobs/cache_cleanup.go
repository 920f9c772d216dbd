package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/valuation-backend/services"
	"github.com/sirupsen/logrus"
)

// CacheCleanupJob drops expired parsed universes from the cache. It is the
// only sweeper; the cache itself never runs a background goroutine.
type CacheCleanupJob struct {
	CacheService *services.CacheService
}

func NewCacheCleanupJob(cacheService *services.CacheService) *CacheCleanupJob {
	return &CacheCleanupJob{CacheService: cacheService}
}

// Start sweeps the cache every interval until ctx is done.
func (j *CacheCleanupJob) Start(ctx context.Context, interval time.Duration) {
	logrus.WithFields(logrus.Fields{
		"component": "CacheCleanupJob",
		"interval":  interval.String(),
	}).Info("Starting Cache Cleanup Job")
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.Run()
			}
		}
	}()
}

func (j *CacheCleanupJob) Run() int {
	start := time.Now()
	removed := j.CacheService.CleanupExpired()
	stats := j.CacheService.Stats()

	logrus.WithFields(logrus.Fields{
		"component": "CacheCleanupJob",
		"removed":   removed,
		"remaining": stats.Size,
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"took":      time.Since(start).String(),
	}).Info("Cache Cleanup Job completed")
	return removed
}
