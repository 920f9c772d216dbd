package main

import (
	"fmt"
	"os"

	"github.com/fenilmodi00/valuation-backend/config"
	"github.com/fenilmodi00/valuation-backend/engine"
	"github.com/fenilmodi00/valuation-backend/services"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const appName = "valuation-backend"

// cliEnv is the configuration shared by every command.
type cliEnv struct {
	cfg     *config.Config
	unified *shared.UnifiedConfiguration
}

func main() {
	rt := &cliEnv{}

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Fundamentals valuation engine and portfolio reviewer",
		Long: `Values every company of a screener fundamentals export with four multiples
(EV/EBITDA, revenue, earnings and book value), blends them into a final
expected price and ranks companies by expected gain. Portfolios are reviewed
against a valued universe to produce HOLD/SELL recommendations.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			rt.cfg = config.LoadConfig()
			unified, err := rt.cfg.Unified()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			rt.unified = unified
			config.ConfigureLogging(unified.Logging.Level, unified.Logging.Format)
			return nil
		},
	}

	rootCmd.AddCommand(
		newServeCmd(rt),
		newValueCmd(rt),
		newPortfolioCmd(rt),
		newScrapeCmd(rt),
		newHealthCmd(rt),
	)

	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func (rt *cliEnv) engineOptions() engine.Options {
	return engine.Options{
		Workers:   rt.unified.Engine.Workers,
		ChunkSize: rt.unified.Engine.ChunkSize,
	}
}

func (rt *cliEnv) screens() (nonSME, sme *engine.ScreenThresholds) {
	return engine.ScreensFrom(rt.unified.Screens)
}

// fetcher builds the guarded screener fetcher. useBrowser selects chromedp
// over the plain HTTP session.
func (rt *cliEnv) fetcher(useBrowser bool, metrics *shared.MetricsRegistry) *services.GuardedScreenerFetcher {
	scraper := rt.unified.Scraper
	settings := services.ScreenerSettingsFrom(scraper, rt.cfg.Credentials(), rt.cfg.ChromePath)

	var inner services.ScreenerFetcher
	if useBrowser {
		inner = services.NewBrowserScreenerFetcher(settings)
	} else {
		client := shared.NewHTTPClientFactory(scraper.HTTPRequestTimeout).CreateOptimizedHTTPClient(scraper.HTTPRequestTimeout)
		limiter := shared.NewHTTPRequestRateLimiterPerSecond(scraper.RequestsPerSecond)
		inner = services.NewHTTPScreenerFetcher(settings, client.Transport, limiter)
	}

	logrus.WithFields(logrus.Fields{
		"component":   "Bootstrap",
		"fetcher":     inner.Name(),
		"screen_url":  settings.ScreenURL,
		"credentials": settings.Credentials.String(),
	}).Debug("Configured screener fetcher")

	return services.NewGuardedScreenerFetcher(inner, scraper, metrics)
}
