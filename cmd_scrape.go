package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/fenilmodi00/valuation-backend/tabular"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newScrapeCmd(rt *cliEnv) *cobra.Command {
	var screenURL, out string
	var browser bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Download the fundamentals export from the screener",
		RunE: func(cmd *cobra.Command, args []string) error {
			if screenURL != "" {
				rt.unified.Scraper.ScreenURL = screenURL
			}
			if out == "" {
				out = fmt.Sprintf("screener_%s.csv", time.Now().Format("2006-01-02"))
			}
			return rt.scrape(cmd.Context(), browser || rt.unified.Scraper.UseBrowser, out)
		},
	}
	cmd.Flags().StringVar(&screenURL, "url", "", "Screen URL to export (default from configuration)")
	cmd.Flags().StringVar(&out, "out", "", "Output CSV path (default screener_<date>.csv)")
	cmd.Flags().BoolVar(&browser, "browser", false, "Use headless Chrome instead of plain HTTP")
	return cmd
}

func (rt *cliEnv) scrape(ctx context.Context, useBrowser bool, out string) error {
	fetcher := rt.fetcher(useBrowser, nil)

	data, err := fetcher.FetchUniverseCSV(ctx)
	if err != nil {
		serviceErr := shared.WrapError(err, shared.ErrorCategoryNetwork, "SCRAPE_FAILED", "CLI", "scrape", shared.IsRetryableError(err))
		serviceErr.LogError()
		return serviceErr
	}

	table, err := tabular.ReadUniverse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("downloaded export is not a usable universe: %w", err)
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	logrus.WithFields(logrus.Fields{
		"component": "CLI",
		"fetcher":   fetcher.Name(),
		"rows":      len(table.Records),
		"bytes":     len(data),
		"out":       out,
	}).Info("Saved screener export")
	return nil
}
