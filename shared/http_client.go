package shared

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BrowserUserAgent is sent on every outbound screener request.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// maxRetryAfter caps how long a Retry-After header can stall a request.
const maxRetryAfter = time.Minute

// retryBackoffBase is the wait before the second attempt; it doubles after that.
var retryBackoffBase = time.Second

// HTTPClientFactory hands out pooled clients, one per timeout, so repeated
// screener calls reuse their connections.
type HTTPClientFactory struct {
	defaultTimeout time.Duration
	mu             sync.Mutex
	clients        map[time.Duration]*http.Client
}

func NewHTTPClientFactory(defaultTimeout time.Duration) *HTTPClientFactory {
	return &HTTPClientFactory{
		defaultTimeout: defaultTimeout,
		clients:        make(map[time.Duration]*http.Client),
	}
}

// CreateOptimizedHTTPClient returns the pooled client for timeout, creating it
// on first use. A non-positive timeout selects the factory default.
func (f *HTTPClientFactory) CreateOptimizedHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = f.defaultTimeout
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[timeout]; ok {
		return client
	}
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}
	f.clients[timeout] = client

	logrus.WithFields(logrus.Fields{
		"component": "HTTPClientFactory",
		"timeout":   timeout,
	}).Debug("Created pooled HTTP client")
	return client
}

// CleanupAllClients closes idle connections and forgets every pooled client.
func (f *HTTPClientFactory) CleanupAllClients() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for timeout, client := range f.clients {
		client.CloseIdleConnections()
		delete(f.clients, timeout)
	}
}

// SetBrowserLikeHeaders makes request look like it came from a desktop browser.
func SetBrowserLikeHeaders(request *http.Request, acceptHeader string) {
	request.Header.Set("User-Agent", BrowserUserAgent)
	request.Header.Set("Accept", acceptHeader)
	request.Header.Set("Accept-Language", "en-IN,en;q=0.9")
	request.Header.Set("Cache-Control", "no-cache")
}

// ExecuteHTTPRequestWithRetry sends request up to maxRetryAttempts+1 times.
// Network errors, 5xx and 429 responses are retried with exponential backoff,
// or after the server's Retry-After when it sends one. Each attempt waits on
// limiter when non-nil.
func ExecuteHTTPRequestWithRetry(ctx context.Context, client *http.Client, limiter *HTTPRequestRateLimiter, request *http.Request, maxRetryAttempts int) (*http.Response, error) {
	logger := logrus.WithFields(logrus.Fields{
		"component": "HTTPClientFactory",
		"url":       request.URL.Redacted(),
	})

	var lastErr error
	wait := time.Duration(0)
	for attempt := 1; attempt <= maxRetryAttempts+1; attempt++ {
		if wait > 0 {
			logger.WithFields(logrus.Fields{"attempt": attempt, "wait": wait}).Debug("Retrying request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		if limiter != nil {
			if err := limiter.EnforceRateLimit(ctx); err != nil {
				return nil, err
			}
		}

		req := request.Clone(ctx)
		if request.GetBody != nil {
			body, err := request.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", err)
			}
			req.Body = body
		}

		backoff := retryBackoffBase << (attempt - 1)
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("attempt %d: %w", attempt, err)
			wait = backoff
			continue
		}
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		lastErr = fmt.Errorf("attempt %d: HTTP %d %s", attempt, resp.StatusCode, http.StatusText(resp.StatusCode))
		wait = retryAfter(resp, backoff)
		resp.Body.Close()
	}

	logger.WithError(lastErr).Warn("Request failed after all retries")
	return nil, NewServiceError(ErrorCategoryNetwork, "HTTP_RETRIES_EXHAUSTED",
		fmt.Sprintf("request failed after %d attempts", maxRetryAttempts+1), "http", "ExecuteHTTPRequestWithRetry", true, lastErr)
}

// retryAfter reads a Retry-After header given in seconds, falling back to
// backoff when it is absent or unparseable.
func retryAfter(resp *http.Response, backoff time.Duration) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return backoff
	}
	if d := time.Duration(secs) * time.Second; d < maxRetryAfter {
		return d
	}
	return maxRetryAfter
}
