package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/fenilmodi00/valuation-backend/config"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const screenerServiceName = "ScreenerFetcher"

// ScreenerFetcher downloads a fundamentals export as raw CSV bytes.
type ScreenerFetcher interface {
	Name() string
	FetchUniverseCSV(ctx context.Context) ([]byte, error)
}

// ScreenerSettings locate the export and the account used to reach it.
type ScreenerSettings struct {
	BaseURL     string
	ScreenURL   string
	Credentials config.ScraperCredentials
	Timeout     time.Duration
	// ChromePath overrides the browser binary; empty uses the system default.
	ChromePath string
}

// ScreenerSettingsFrom builds settings from the structured scraper configuration.
func ScreenerSettingsFrom(cfg shared.ScraperConfig, creds config.ScraperCredentials, chromePath string) ScreenerSettings {
	return ScreenerSettings{
		BaseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		ScreenURL:   cfg.ScreenURL,
		Credentials: creds,
		Timeout:     cfg.Timeout,
		ChromePath:  chromePath,
	}
}

func (s ScreenerSettings) loginURL() string {
	return s.BaseURL + "/login/"
}

func (s ScreenerSettings) validate(operation string) error {
	if s.Credentials.Empty() {
		return shared.NewServiceError(shared.ErrorCategoryConfiguration, "SCRAPER_CREDENTIALS_MISSING",
			"SCRAPER_USERNAME and SCRAPER_PASSWORD must both be set", screenerServiceName, operation, false, nil)
	}
	if s.BaseURL == "" || s.ScreenURL == "" {
		return shared.NewServiceError(shared.ErrorCategoryConfiguration, "SCRAPER_URL_MISSING",
			"screener base URL and screen URL are required", screenerServiceName, operation, false, nil)
	}
	return nil
}

func authFailed(operation string) error {
	return shared.NewServiceError(shared.ErrorCategoryAuthentication, "SCRAPER_LOGIN_FAILED",
		"screener login was rejected", screenerServiceName, operation, false, nil)
}

// BrowserScreenerFetcher drives headless Chrome through the login form and
// clicks the export button, capturing the downloaded file.
type BrowserScreenerFetcher struct {
	settings ScreenerSettings
	logger   *logrus.Entry
}

// NewBrowserScreenerFetcher creates a chromedp backed fetcher.
func NewBrowserScreenerFetcher(settings ScreenerSettings) *BrowserScreenerFetcher {
	return &BrowserScreenerFetcher{
		settings: settings,
		logger:   logrus.WithFields(logrus.Fields{"component": screenerServiceName, "fetcher": "browser"}),
	}
}

func (f *BrowserScreenerFetcher) Name() string { return "browser" }

// FetchUniverseCSV logs in, opens the screen and returns the exported CSV.
func (f *BrowserScreenerFetcher) FetchUniverseCSV(ctx context.Context) ([]byte, error) {
	const operation = "BrowserFetch"
	if err := f.settings.validate(operation); err != nil {
		return nil, err
	}

	downloadDir, err := os.MkdirTemp("", "screener-export-*")
	if err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryResource, "DOWNLOAD_DIR_FAILED",
			"failed to create download directory", screenerServiceName, operation, false, err)
	}
	defer os.RemoveAll(downloadDir)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(shared.BrowserUserAgent),
	)
	if f.settings.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(f.settings.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	timeout := f.settings.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	completed := make(chan string, 1)
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if progress, ok := ev.(*browser.EventDownloadProgress); ok && progress.State == browser.DownloadProgressStateCompleted {
			select {
			case completed <- progress.GUID:
			default:
			}
		}
	})

	f.logger.WithField("screen_url", f.settings.ScreenURL).Info("Starting browser export")

	var stillOnLogin bool
	err = chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
		chromedp.Navigate(f.settings.loginURL()),
		chromedp.WaitVisible(`input[name="username"]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="username"]`, f.settings.Credentials.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, f.settings.Credentials.Password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(`document.querySelector('input[name="password"]') !== null`, &stillOnLogin),
	)
	if err != nil {
		return nil, f.classify(err, operation)
	}
	if stillOnLogin {
		return nil, authFailed(operation)
	}

	err = chromedp.Run(browserCtx,
		chromedp.Navigate(f.settings.ScreenURL),
		chromedp.WaitVisible(`button.tooltip-left`, chromedp.ByQuery),
		chromedp.Click(`button.tooltip-left`, chromedp.ByQuery),
	)
	if err != nil {
		return nil, f.classify(err, operation)
	}

	var guid string
	select {
	case guid = <-completed:
	case <-browserCtx.Done():
		return nil, f.classify(browserCtx.Err(), operation)
	}

	data, err := os.ReadFile(filepath.Join(downloadDir, guid))
	if err != nil {
		return nil, shared.NewServiceError(shared.ErrorCategoryProcessing, "DOWNLOAD_READ_FAILED",
			"export finished but the file could not be read", screenerServiceName, operation, true, err)
	}

	f.logger.WithField("bytes", len(data)).Info("Browser export completed")
	return data, nil
}

func (f *BrowserScreenerFetcher) classify(err error, operation string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return shared.NewServiceError(shared.ErrorCategoryTimeout, "BROWSER_TIMEOUT",
			"browser export did not finish in time", screenerServiceName, operation, true, err)
	}
	return shared.NewServiceError(shared.ErrorCategoryNetwork, "BROWSER_FAILED",
		"browser export failed", screenerServiceName, operation, true, err)
}

// HTTPScreenerFetcher performs the same export with plain HTTP: a colly
// session carries the login cookie and goquery reads the CSRF tokens.
type HTTPScreenerFetcher struct {
	settings  ScreenerSettings
	transport http.RoundTripper
	limiter   *shared.HTTPRequestRateLimiter
	logger    *logrus.Entry
}

// NewHTTPScreenerFetcher creates a colly backed fetcher. limiter may be nil.
func NewHTTPScreenerFetcher(settings ScreenerSettings, transport http.RoundTripper, limiter *shared.HTTPRequestRateLimiter) *HTTPScreenerFetcher {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HTTPScreenerFetcher{
		settings:  settings,
		transport: transport,
		limiter:   limiter,
		logger:    logrus.WithFields(logrus.Fields{"component": screenerServiceName, "fetcher": "http"}),
	}
}

func (f *HTTPScreenerFetcher) Name() string { return "http" }

// exportForm is the hidden form behind the export button.
type exportForm struct {
	Action string
	Token  string
}

// FindCSRFToken returns the first csrfmiddlewaretoken value in doc.
func FindCSRFToken(doc *goquery.Document) string {
	token, _ := doc.Find(`input[name="csrfmiddlewaretoken"]`).First().Attr("value")
	return token
}

// FindExportForm locates the form whose action contains "export".
func FindExportForm(doc *goquery.Document) (exportForm, bool) {
	var form exportForm
	found := false
	doc.Find("form").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		action, _ := s.Attr("action")
		if !strings.Contains(strings.ToLower(action), "export") {
			return true
		}
		form.Action = action
		form.Token, _ = s.Find(`input[name="csrfmiddlewaretoken"]`).Attr("value")
		found = true
		return false
	})
	return form, found
}

// FetchUniverseCSV logs in, opens the screen and posts its export form.
func (f *HTTPScreenerFetcher) FetchUniverseCSV(ctx context.Context) ([]byte, error) {
	const operation = "HTTPFetch"
	if err := f.settings.validate(operation); err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := colly.NewCollector(
		colly.UserAgent(shared.BrowserUserAgent),
		colly.AllowURLRevisit(),
	)
	c.MaxBodySize = 64 * 1024 * 1024
	c.WithTransport(f.transport)
	c.SetCookieJar(jar)
	if f.settings.Timeout > 0 {
		c.SetRequestTimeout(f.settings.Timeout)
	}

	referer := f.settings.loginURL()
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Referer", referer)
		f.logger.WithFields(logrus.Fields{"method": r.Method, "url": r.URL.String()}).Debug("Screener request")
	})

	var last *colly.Response
	c.OnResponse(func(r *colly.Response) {
		last = r
	})

	step := func(name string, do func() error) (*colly.Response, error) {
		if f.limiter != nil {
			if err := f.limiter.EnforceRateLimit(ctx); err != nil {
				return nil, err
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}
		last = nil
		if err := do(); err != nil {
			return nil, shared.NewServiceError(shared.ErrorCategoryNetwork, "SCREENER_REQUEST_FAILED",
				fmt.Sprintf("%s request failed", name), screenerServiceName, operation, true, err)
		}
		if last == nil {
			return nil, shared.NewServiceError(shared.ErrorCategoryNetwork, "SCREENER_EMPTY_RESPONSE",
				fmt.Sprintf("%s returned no response", name), screenerServiceName, operation, true, nil)
		}
		return last, nil
	}

	loginPage, err := step("login page", func() error { return c.Visit(f.settings.loginURL()) })
	if err != nil {
		return nil, err
	}
	loginDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(loginPage.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse login page: %w", err)
	}
	token := FindCSRFToken(loginDoc)
	if token == "" {
		return nil, shared.NewServiceError(shared.ErrorCategoryProcessing, "CSRF_TOKEN_MISSING",
			"login page has no CSRF token", screenerServiceName, operation, false, nil)
	}

	afterLogin, err := step("login", func() error {
		return c.Post(f.settings.loginURL(), map[string]string{
			"csrfmiddlewaretoken": token,
			"username":            f.settings.Credentials.Username,
			"password":            f.settings.Credentials.Password,
		})
	})
	if err != nil {
		return nil, err
	}
	afterDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(afterLogin.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse login response: %w", err)
	}
	if afterDoc.Find(`input[name="password"]`).Length() > 0 {
		return nil, authFailed(operation)
	}

	screenPage, err := step("screen page", func() error { return c.Visit(f.settings.ScreenURL) })
	if err != nil {
		return nil, err
	}
	screenDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(screenPage.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse screen page: %w", err)
	}
	form, ok := FindExportForm(screenDoc)
	if !ok {
		return nil, shared.NewServiceError(shared.ErrorCategoryProcessing, "EXPORT_FORM_MISSING",
			"screen page has no export form", screenerServiceName, operation, false, nil)
	}
	if form.Token == "" {
		form.Token = FindCSRFToken(screenDoc)
	}

	referer = f.settings.ScreenURL
	exportURL := screenPage.Request.AbsoluteURL(form.Action)
	export, err := step("export", func() error {
		return c.Post(exportURL, map[string]string{"csrfmiddlewaretoken": form.Token})
	})
	if err != nil {
		return nil, err
	}

	contentType := strings.ToLower(export.Headers.Get("Content-Type"))
	disposition := strings.ToLower(export.Headers.Get("Content-Disposition"))
	if !strings.Contains(contentType, "csv") && !strings.Contains(disposition, ".csv") {
		return nil, shared.NewServiceError(shared.ErrorCategoryProcessing, "EXPORT_NOT_CSV",
			fmt.Sprintf("export returned %q instead of CSV", contentType), screenerServiceName, operation, false, nil)
	}

	f.logger.WithField("bytes", len(export.Body)).Info("HTTP export completed")
	return export.Body, nil
}

// GuardedScreenerFetcher bounds a fetcher with a timeout, a politeness limiter
// and a circuit breaker, and records the outcome.
type GuardedScreenerFetcher struct {
	inner   ScreenerFetcher
	breaker *shared.UpstreamBreaker
	limiter *shared.HTTPRequestRateLimiter
	timeout time.Duration
	metrics *shared.MetricsRegistry
}

// NewGuardedScreenerFetcher wraps inner. metrics may be nil.
func NewGuardedScreenerFetcher(inner ScreenerFetcher, cfg shared.ScraperConfig, metrics *shared.MetricsRegistry) *GuardedScreenerFetcher {
	return &GuardedScreenerFetcher{
		inner: inner,
		breaker: shared.NewUpstreamBreaker(shared.BreakerSettings{
			Name:                "screener-" + inner.Name(),
			ConsecutiveFailures: cfg.BreakerFailures,
			Cooldown:            cfg.BreakerCooldown,
		}),
		limiter: shared.NewHTTPRequestRateLimiterPerSecond(cfg.RequestsPerSecond),
		timeout: cfg.Timeout,
		metrics: metrics,
	}
}

func (g *GuardedScreenerFetcher) Name() string { return g.inner.Name() }

// BreakerState reports the state of the underlying breaker.
func (g *GuardedScreenerFetcher) BreakerState() string { return g.breaker.State() }

// FetchUniverseCSV delegates to the wrapped fetcher. An empty body counts as a failure.
func (g *GuardedScreenerFetcher) FetchUniverseCSV(ctx context.Context) ([]byte, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if err := g.limiter.EnforceRateLimit(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := g.breaker.Execute("FetchUniverseCSV", func() (interface{}, error) {
		data, err := g.inner.FetchUniverseCSV(ctx)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, shared.NewServiceError(shared.ErrorCategoryProcessing, "EXPORT_EMPTY",
				"export returned an empty file", screenerServiceName, "FetchUniverseCSV", true, nil)
		}
		return data, nil
	})
	g.metrics.RecordScrape(g.inner.Name(), err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}
