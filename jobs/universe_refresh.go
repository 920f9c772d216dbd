package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/fenilmodi00/valuation-backend/services"
	"github.com/sirupsen/logrus"
)

// ErrRefreshInProgress is returned when a refresh is requested while one is running.
var ErrRefreshInProgress = errors.New("universe refresh already in progress")

// UniverseRefreshJob downloads a fresh fundamentals export and stores it as
// a new universe. Stored universes are never modified.
type UniverseRefreshJob struct {
	Fetcher   services.ScreenerFetcher
	Universes *services.UniverseService
	Timeout   time.Duration

	mu      sync.Mutex
	running sync.WaitGroup
	now     func() time.Time
	logger *logrus.Entry
}

func NewUniverseRefreshJob(fetcher services.ScreenerFetcher, universes *services.UniverseService, timeout time.Duration) *UniverseRefreshJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &UniverseRefreshJob{
		Fetcher:   fetcher,
		Universes: universes,
		Timeout:   timeout,
		now:       time.Now,
		logger:    logrus.WithField("component", "UniverseRefreshJob"),
	}
}

// Start runs the job immediately and then every interval until ctx is done.
// Cancelling ctx also aborts a refresh in flight; Wait blocks until the
// loop has exited.
func (j *UniverseRefreshJob) Start(ctx context.Context, interval time.Duration) {
	j.logger.WithField("interval", interval.String()).Info("Starting Universe Refresh Job")
	ticker := time.NewTicker(interval)

	j.running.Add(1)
	go func() {
		defer j.running.Done()
		defer ticker.Stop()
		j.Run(ctx)

		for {
			select {
			case <-ctx.Done():
				j.logger.Info("Universe Refresh Job stopped")
				return
			case <-ticker.C:
				j.Run(ctx)
			}
		}
	}()
}

// Wait blocks until every loop begun by Start has returned.
func (j *UniverseRefreshJob) Wait() {
	j.running.Wait()
}

// Run performs one refresh and logs the outcome.
func (j *UniverseRefreshJob) Run(ctx context.Context) {
	_, err := j.RunOnce(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		j.logger.WithError(err).Info("Universe Refresh Job cancelled")
	default:
		j.logger.Errorf("Universe Refresh Job failed: %v", err)
	}
}

// RunOnce fetches, decodes and stores one universe. Overlapping calls fail
// fast with ErrRefreshInProgress.
func (j *UniverseRefreshJob) RunOnce(ctx context.Context) (*models.Universe, error) {
	if !j.mu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, j.Timeout)
	defer cancel()

	start := j.now()
	j.logger.WithField("fetcher", j.Fetcher.Name()).Info("Fetching universe from screener")

	raw, err := j.Fetcher.FetchUniverseCSV(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch universe: %w", err)
	}

	name := "screener " + start.UTC().Format("2006-01-02 15:04")
	universe, err := j.Universes.Store(ctx, name, models.UniverseSourceScrape, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to store universe: %w", err)
	}

	j.logger.WithFields(logrus.Fields{
		"universe_id": universe.ID,
		"rows":        universe.RowCount,
		"bytes":       len(raw),
		"took":        j.now().Sub(start).String(),
	}).Info("Universe Refresh Job completed")
	return universe, nil
}
