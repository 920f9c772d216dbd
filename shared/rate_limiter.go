package shared

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// HTTPRequestRateLimiter spaces outbound requests to a single upstream.
type HTTPRequestRateLimiter struct {
	limiter      *rate.Limiter
	requestCount atomic.Int64
}

// NewHTTPRequestRateLimiter allows one request per minimumDelay with no burst.
func NewHTTPRequestRateLimiter(minimumDelay time.Duration) *HTTPRequestRateLimiter {
	limit := rate.Inf
	if minimumDelay > 0 {
		limit = rate.Every(minimumDelay)
	}
	return &HTTPRequestRateLimiter{limiter: rate.NewLimiter(limit, 1)}
}

// NewHTTPRequestRateLimiterPerSecond is NewHTTPRequestRateLimiter expressed as a rate.
func NewHTTPRequestRateLimiterPerSecond(requestsPerSecond float64) *HTTPRequestRateLimiter {
	if requestsPerSecond <= 0 {
		return NewHTTPRequestRateLimiter(0)
	}
	return &HTTPRequestRateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1)}
}

// EnforceRateLimit blocks until the next request may go out or ctx is done.
func (l *HTTPRequestRateLimiter) EnforceRateLimit(ctx context.Context) error {
	reservation := l.limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		logrus.WithFields(logrus.Fields{
			"component":     "HTTPRequestRateLimiter",
			"delay":         delay,
			"request_count": l.requestCount.Load() + 1,
		}).Debug("Enforcing rate limit delay")

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			reservation.Cancel()
			return ctx.Err()
		case <-timer.C:
		}
	}
	l.requestCount.Add(1)
	return nil
}

// GetRequestCount returns the total number of requests let through
func (l *HTTPRequestRateLimiter) GetRequestCount() int64 {
	return l.requestCount.Load()
}

// UpdateMinimumDelay changes the spacing between requests
func (l *HTTPRequestRateLimiter) UpdateMinimumDelay(newDelay time.Duration) {
	limit := rate.Inf
	if newDelay > 0 {
		limit = rate.Every(newDelay)
	}
	l.limiter.SetLimit(limit)

	logrus.WithFields(logrus.Fields{
		"component": "HTTPRequestRateLimiter",
		"new_delay": newDelay,
	}).Info("Updated rate limiter minimum delay")
}
