package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fenilmodi00/valuation-backend/database"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/fenilmodi00/valuation-backend/tabular"
	"github.com/spf13/cobra"
)

// healthCheck is one line of the health report.
type healthCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func newHealthCmd(rt *cliEnv) *cobra.Command {
	var skipLogin, browser bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check configuration, database and screener access",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.health(cmd.Context(), skipLogin, browser)
		},
	}
	cmd.Flags().BoolVar(&skipLogin, "skip-login", false, "Do not log in to the screener and download the export")
	cmd.Flags().BoolVar(&browser, "browser", false, "Use headless Chrome for the login round trip")
	return cmd
}

func (rt *cliEnv) health(ctx context.Context, skipLogin, browser bool) error {
	fmt.Printf("Valuation Backend Health Check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 50))

	checks := []healthCheck{
		{"Configuration", rt.checkConfiguration},
		{"Screener reachable", rt.checkScreenerReachable},
	}
	if !skipLogin {
		checks = append(checks, healthCheck{"Screener login", func(ctx context.Context) (string, error) {
			return rt.checkScreenerLogin(ctx, browser)
		}})
	}
	checks = append(checks,
		healthCheck{"Database", rt.checkDatabase},
		healthCheck{"Database schema", rt.checkSchema},
	)
	defer database.Close()

	healthScore := 0
	for _, check := range checks {
		fmt.Printf("%-20s ", check.name+":")
		detail, err := check.run(ctx)
		if err != nil {
			fmt.Printf("❌ FAILED (%v)\n", err)
			continue
		}
		fmt.Printf("✅ OK %s\n", detail)
		healthScore++
	}

	fmt.Println(strings.Repeat("-", 50))
	totalTests := len(checks)
	healthPercent := float64(healthScore) / float64(totalTests) * 100
	switch {
	case healthScore == totalTests:
		fmt.Printf("SYSTEM HEALTHY: %d/%d checks passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
		return nil
	case healthScore >= totalTests/2:
		fmt.Printf("SYSTEM DEGRADED: %d/%d checks passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	default:
		fmt.Printf("SYSTEM UNHEALTHY: %d/%d checks passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	}
	return fmt.Errorf("%d of %d health checks failed", totalTests-healthScore, totalTests)
}

func (rt *cliEnv) checkConfiguration(context.Context) (string, error) {
	creds := rt.cfg.Credentials()
	if creds.Empty() {
		return "", fmt.Errorf("SCRAPER_USERNAME and SCRAPER_PASSWORD must be set")
	}
	if rt.cfg.DatabaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL is not set")
	}
	return fmt.Sprintf("(scraper %s)", creds), nil
}

func (rt *cliEnv) checkScreenerReachable(ctx context.Context) (string, error) {
	scraper := rt.unified.Scraper
	factory := shared.NewHTTPClientFactory(scraper.HTTPRequestTimeout)
	defer factory.CleanupAllClients()
	client := factory.CreateOptimizedHTTPClient(scraper.HTTPRequestTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scraper.BaseURL+"/login/", nil)
	if err != nil {
		return "", err
	}
	shared.SetBrowserLikeHeaders(req, "text/html,application/xhtml+xml")

	resp, err := shared.ExecuteHTTPRequestWithRetry(ctx, client, nil, req, 2)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return fmt.Sprintf("(HTTP %d)", resp.StatusCode), nil
}

func (rt *cliEnv) checkScreenerLogin(ctx context.Context, browser bool) (string, error) {
	data, err := rt.fetcher(browser, nil).FetchUniverseCSV(ctx)
	if err != nil {
		return "", err
	}
	table, err := tabular.ReadUniverse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%d companies)", len(table.Records)), nil
}

func (rt *cliEnv) checkDatabase(context.Context) (string, error) {
	if err := database.ConnectWithConfig(rt.cfg.DatabaseURL, &rt.unified.Database); err != nil {
		return "", err
	}
	if err := database.HealthCheck(); err != nil {
		return "", err
	}
	stats := database.GetConnectionStats()
	return fmt.Sprintf("(%d open connections)", stats.OpenConnections), nil
}

func (rt *cliEnv) checkSchema(ctx context.Context) (string, error) {
	if database.DB == nil {
		return "", fmt.Errorf("database connection not established")
	}
	missing, err := database.ValidateSchema(ctx, database.DB)
	if err != nil {
		return "", err
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing tables: %s", strings.Join(missing, ", "))
	}
	return fmt.Sprintf("(%d tables)", len(database.RequiredTables)), nil
}
