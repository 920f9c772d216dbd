package jobs

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fenilmodi00/valuation-backend/engine"
	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/fenilmodi00/valuation-backend/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refreshCSV = "Name,NSE Code,Is SME,Current Price,Number of equity shares,Debt,Cash Equivalents," +
	"Operating profit,Operating profit growth,Sales,Sales growth,Profit after tax,Profit growth," +
	"Price to Earning,Industry PE,Price to book value,Industry PBV,Book value,Book value preceding year," +
	"Market Capitalization\n" +
	"Reference Industries,REFIND,0,50,100,200,50,100,10,1000,5,80,8,12,15,2,2.5,120,100,5000\n"

type anyTime struct{}

func (anyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

type fakeFetcher struct {
	data    []byte
	err     error
	started chan struct{}
	release chan struct{}

	// blockUntilDone makes the fetch hang until its context ends.
	blockUntilDone bool
	sawErr         chan error
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) FetchUniverseCSV(ctx context.Context) ([]byte, error) {
	if f.blockUntilDone {
		close(f.started)
		<-ctx.Done()
		f.sawErr <- ctx.Err()
		return nil, ctx.Err()
	}
	if f.release != nil {
		close(f.started)
		<-f.release
	}
	return f.data, f.err
}

func newRefreshJob(t *testing.T, fetcher services.ScreenerFetcher) (*UniverseRefreshJob, sqlmock.Sqlmock, *services.CacheService) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := services.NewCacheServiceWithConfig(time.Hour, 4)

	universes := services.NewUniverseService(db, cache, engine.New(engine.DefaultOptions(), nil))
	job := NewUniverseRefreshJob(fetcher, universes, time.Minute)
	job.now = func() time.Time { return time.Date(2026, 3, 31, 9, 30, 0, 0, time.UTC) }
	return job, mock, cache
}

func TestUniverseRefreshStoresScrapedUniverse(t *testing.T) {
	job, mock, cache := newRefreshJob(t, &fakeFetcher{data: []byte(refreshCSV)})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO universes")).
		WithArgs(sqlmock.AnyArg(), "screener 2026-03-31 09:30", models.UniverseSourceScrape, 1, []byte(refreshCSV), anyTime{}).
		WillReturnResult(sqlmock.NewResult(1, 1))

	u, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.UniverseSourceScrape, u.Source)
	assert.Equal(t, 1, u.RowCount)
	assert.Equal(t, 1, cache.Size())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUniverseRefreshFetchFailure(t *testing.T) {
	job, mock, _ := newRefreshJob(t, &fakeFetcher{err: errors.New("login rejected")})

	_, err := job.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login rejected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUniverseRefreshRejectsOverlappingRuns(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("stop"), started: make(chan struct{}), release: make(chan struct{})}
	job, _, _ := newRefreshJob(t, fetcher)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = job.RunOnce(context.Background())
	}()
	<-fetcher.started

	_, err := job.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)

	close(fetcher.release)
	<-done
}

func TestUniverseRefreshStopsWhenContextIsCancelled(t *testing.T) {
	fetcher := &fakeFetcher{blockUntilDone: true, started: make(chan struct{}), sawErr: make(chan error, 1)}
	job, mock, _ := newRefreshJob(t, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	job.Start(ctx, time.Hour)
	<-fetcher.started
	cancel()

	select {
	case err := <-fetcher.sawErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not observe cancellation")
	}

	stopped := make(chan struct{})
	go func() {
		job.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh loop did not exit")
	}
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing is stored after cancellation")
}

func TestCacheCleanupJobRemovesExpired(t *testing.T) {
	cache := services.NewCacheServiceWithConfig(time.Hour, 4)

	cache.SetWithTTL("old", 1, -time.Second)
	cache.Set("fresh", 2)

	assert.Equal(t, 1, NewCacheCleanupJob(cache).Run())
	assert.Equal(t, 1, cache.Size())
}
