package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fenilmodi00/valuation-backend/config"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginForm = `<html><body><form method="post" action="/login/">
<input type="hidden" name="csrfmiddlewaretoken" value="login-token">
<input name="username"><input name="password" type="password">
<button type="submit">Login</button></form></body></html>`

const screenPage = `<html><body>
<form method="get" action="/screens/search/"><input name="q"></form>
<form method="post" action="/screens/1/export/">
<input type="hidden" name="csrfmiddlewaretoken" value="export-token">
<button class="tooltip-left">Export to Excel</button></form></body></html>`

// fakeScreener imitates the login and export flow of a Django site.
func fakeScreener(t *testing.T, csvBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/login/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, loginForm)
			return
		}
		_ = r.ParseForm()
		if r.FormValue("csrfmiddlewaretoken") != "login-token" || r.FormValue("password") != "secret" {
			fmt.Fprint(w, loginForm)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/dash/", http.StatusFound)
	})
	mux.HandleFunc("/dash/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>dashboard</body></html>")
	})
	mux.HandleFunc("/screens/1/all/", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sessionid"); err != nil || c.Value != "ok" {
			http.Redirect(w, r, "/login/", http.StatusFound)
			return
		}
		fmt.Fprint(w, screenPage)
	})
	mux.HandleFunc("/screens/1/export/", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Method != http.MethodPost || r.FormValue("csrfmiddlewaretoken") != "export-token" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="all.csv"`)
		fmt.Fprint(w, csvBody)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testSettings(baseURL, password string) ScreenerSettings {
	return ScreenerSettings{
		BaseURL:     baseURL,
		ScreenURL:   baseURL + "/screens/1/all/",
		Credentials: config.ScraperCredentials{Username: "analyst", Password: password},
		Timeout:     5 * time.Second,
	}
}

func TestHTTPScreenerFetcherDownloadsExport(t *testing.T) {
	srv := fakeScreener(t, testUniverseCSV)
	fetcher := NewHTTPScreenerFetcher(testSettings(srv.URL, "secret"), nil, nil)

	data, err := fetcher.FetchUniverseCSV(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testUniverseCSV, string(data))
}

func TestHTTPScreenerFetcherRejectedLogin(t *testing.T) {
	srv := fakeScreener(t, testUniverseCSV)
	fetcher := NewHTTPScreenerFetcher(testSettings(srv.URL, "wrong"), nil, nil)

	_, err := fetcher.FetchUniverseCSV(context.Background())
	require.Error(t, err)
	assert.Equal(t, shared.ErrorCategoryAuthentication, shared.ErrorCategoryOf(err))
}

func TestScreenerFetchersRequireCredentials(t *testing.T) {
	settings := testSettings("http://127.0.0.1:1", "")

	_, err := NewHTTPScreenerFetcher(settings, nil, nil).FetchUniverseCSV(context.Background())
	assert.Equal(t, shared.ErrorCategoryConfiguration, shared.ErrorCategoryOf(err))

	_, err = NewBrowserScreenerFetcher(settings).FetchUniverseCSV(context.Background())
	assert.Equal(t, shared.ErrorCategoryConfiguration, shared.ErrorCategoryOf(err))
}

func TestFindExportForm(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(screenPage))
	require.NoError(t, err)

	form, ok := FindExportForm(doc)
	require.True(t, ok)
	assert.Equal(t, "/screens/1/export/", form.Action)
	assert.Equal(t, "export-token", form.Token)

	doc, err = goquery.NewDocumentFromReader(strings.NewReader(loginForm))
	require.NoError(t, err)
	_, ok = FindExportForm(doc)
	assert.False(t, ok)
	assert.Equal(t, "login-token", FindCSRFToken(doc))
}

type stubFetcher struct {
	calls atomic.Int32
	data  []byte
	err   error
}

func (s *stubFetcher) Name() string { return "stub" }

func (s *stubFetcher) FetchUniverseCSV(context.Context) ([]byte, error) {
	s.calls.Add(1)
	return s.data, s.err
}

func TestGuardedFetcherOpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubFetcher{err: errors.New("connection reset")}
	metrics := shared.NewMetricsRegistry()
	guarded := NewGuardedScreenerFetcher(stub, shared.ScraperConfig{
		RequestsPerSecond: 1000,
		BreakerFailures:   2,
		BreakerCooldown:   time.Hour,
	}, metrics)

	for i := 0; i < 2; i++ {
		_, err := guarded.FetchUniverseCSV(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, "open", guarded.BreakerState())

	_, err := guarded.FetchUniverseCSV(context.Background())
	require.Error(t, err)
	assert.Equal(t, shared.ErrorCategoryResource, shared.ErrorCategoryOf(err))
	assert.True(t, shared.IsRetryableError(err))
	assert.Equal(t, int32(2), stub.calls.Load())
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ScrapeAttempts.WithLabelValues("stub", "failure")))
}

func TestGuardedFetcherTreatsEmptyBodyAsFailure(t *testing.T) {
	stub := &stubFetcher{data: []byte("  \n")}
	guarded := NewGuardedScreenerFetcher(stub, shared.ScraperConfig{RequestsPerSecond: 1000}, nil)

	_, err := guarded.FetchUniverseCSV(context.Background())
	require.Error(t, err)
	assert.Equal(t, shared.ErrorCategoryProcessing, shared.ErrorCategoryOf(err))
}
