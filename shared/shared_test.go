package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamBreakerOpensAndRejects(t *testing.T) {
	b := NewUpstreamBreaker(BreakerSettings{Name: "upstream", ConsecutiveFailures: 2, Cooldown: time.Hour})
	boom := errors.New("boom")

	calls := 0
	fail := func() (interface{}, error) {
		calls++
		return nil, boom
	}

	_, err := b.Execute("fetch", fail)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "closed", b.State())

	_, err = b.Execute("fetch", fail)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "open", b.State())

	_, err = b.Execute("fetch", fail)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, ErrorCategoryResource, ErrorCategoryOf(err))
	assert.True(t, IsRetryableError(err))
	assert.Equal(t, 2, calls)
}

func TestRateLimiterSpacesRequests(t *testing.T) {
	l := NewHTTPRequestRateLimiter(40 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.EnforceRateLimit(ctx))
	require.NoError(t, l.EnforceRateLimit(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, int64(2), l.GetRequestCount())

	l.UpdateMinimumDelay(time.Hour)
	cancelled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.EnforceRateLimit(cancelled), context.DeadlineExceeded)
	assert.Equal(t, int64(2), l.GetRequestCount())
}

func TestUnlimitedRateLimiter(t *testing.T) {
	l := NewHTTPRequestRateLimiterPerSecond(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.EnforceRateLimit(context.Background()))
	}
	assert.Equal(t, int64(100), l.GetRequestCount())
}

func TestUnifiedConfigurationOverlays(t *testing.T) {
	cfg := NewDefaultUnifiedConfiguration()
	require.NoError(t, cfg.LoadFromYAML([]byte(`
engine:
  workers: 4
screens:
  sme:
    min_sales: 7
    min_operating_profit: -1
scraper:
  base_url: https://example.test/
  timeout: 45s
`)))

	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 500, cfg.Engine.ChunkSize)
	assert.Equal(t, ScreenConfig{MinSales: 5, MinOperatingProfit: 1}, cfg.Screens.SME, "negative thresholds fall back")
	assert.Equal(t, ScreenConfig{MinSales: 50, MinOperatingProfit: 10}, cfg.Screens.NonSME)
	assert.Equal(t, "https://example.test", cfg.Scraper.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Scraper.Timeout)

	clone := cfg.Clone()
	assert.Equal(t, cfg, clone)
	clone.Engine.Workers = 8
	assert.Equal(t, 4, cfg.Engine.Workers)

	require.NoError(t, cfg.LoadFromJSON([]byte(`{"cache":{"max_size":0},"logging":{"format":"text"}}`)))
	assert.Equal(t, 32, cfg.Cache.MaxSize)
	assert.Equal(t, "text", cfg.Logging.Format)

	assert.Error(t, cfg.LoadFromJSON([]byte(`{"engine":`)))
}

func TestServiceErrorHelpers(t *testing.T) {
	cause := errors.New("socket closed")
	err := fmt.Errorf("load: %w", NewServiceError(ErrorCategoryDatabase, "DB_DOWN", "database down", "svc", "op", true, cause))

	assert.Equal(t, ErrorCategoryDatabase, ErrorCategoryOf(err))
	assert.True(t, IsRetryableError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrorCategory(""), ErrorCategoryOf(cause))
	assert.True(t, IsRetryableError(cause), "network looking messages are retryable")
	assert.False(t, IsRetryableError(errors.New("bad header")))
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(fmt.Errorf("fetch: %w", context.Canceled)))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))

	nf := NotFound("svc", "Get", "portfolio 1")
	assert.Equal(t, ErrorCategoryNotFound, nf.Category)
	assert.False(t, nf.IsRetryable())

	wrapped := WrapError(nf, ErrorCategoryNetwork, "X", "cli", "scrape", true)
	assert.Equal(t, ErrorCategoryNotFound, wrapped.Category)
	assert.Equal(t, "cli", wrapped.ServiceName)
	assert.Nil(t, WrapError(nil, ErrorCategoryNetwork, "X", "cli", "scrape", true))
}

func TestSummarizeRowFailures(t *testing.T) {
	samples := []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}
	assert.Equal(t, "valued 10 rows, 5 failed; a; b; c; and 2 more", SummarizeRowFailures(10, 5, samples))
	assert.Equal(t, "valued 3 rows, 0 failed", SummarizeRowFailures(3, 0, nil))
}

func shortBackoff(t *testing.T) {
	t.Helper()
	prev := retryBackoffBase
	retryBackoffBase = time.Millisecond
	t.Cleanup(func() { retryBackoffBase = prev })
}

func TestExecuteHTTPRequestWithRetry(t *testing.T) {
	shortBackoff(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, BrowserUserAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewHTTPClientFactory(time.Second).CreateOptimizedHTTPClient(0)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	SetBrowserLikeHeaders(req, "text/html")

	resp, err := ExecuteHTTPRequestWithRetry(context.Background(), client, nil, req, 2)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestExecuteHTTPRequestWithRetryHonoursRetryAfter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	start := time.Now()
	resp, err := ExecuteHTTPRequestWithRetry(context.Background(), srv.Client(), nil, req, 1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(2), hits.Load())
	assert.Less(t, time.Since(start), retryBackoffBase, "Retry-After: 0 skips the backoff")
}

func TestRetryAfterIsCapped(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"3600"}}}
	assert.Equal(t, maxRetryAfter, retryAfter(resp, time.Second))
	resp.Header.Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
	assert.Equal(t, time.Second, retryAfter(resp, time.Second))
}

func TestExecuteHTTPRequestWithRetryGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	factory := NewHTTPClientFactory(time.Second)
	defer factory.CleanupAllClients()
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = ExecuteHTTPRequestWithRetry(context.Background(), factory.CreateOptimizedHTTPClient(time.Second), nil, req, 0)
	require.Error(t, err)
	assert.Equal(t, ErrorCategoryNetwork, ErrorCategoryOf(err))
}

func TestMetricsRegistryIsNilSafe(t *testing.T) {
	var nilRegistry *MetricsRegistry
	nilRegistry.RecordScrape("http", true, time.Second)
	nilRegistry.RecordRecommendation("HOLD")

	m := NewMetricsRegistry()
	m.RecordScrape("http", false, time.Second)
	m.RecordRecommendation("")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrapeAttempts.WithLabelValues("http", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PortfolioReview.WithLabelValues("none")))
}
