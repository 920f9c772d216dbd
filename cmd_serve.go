package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fenilmodi00/valuation-backend/database"
	"github.com/fenilmodi00/valuation-backend/engine"
	"github.com/fenilmodi00/valuation-backend/handlers"
	"github.com/fenilmodi00/valuation-backend/jobs"
	"github.com/fenilmodi00/valuation-backend/services"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const cacheCleanupInterval = 12 * time.Hour

func newServeCmd(rt *cliEnv) *cobra.Command {
	var browser, noRefresh bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic screener refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.serve(browser || rt.unified.Scraper.UseBrowser, !noRefresh)
		},
	}
	cmd.Flags().BoolVar(&browser, "browser", false, "Download exports with headless Chrome instead of plain HTTP")
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "Do not schedule the screener refresh job")
	return cmd
}

func (rt *cliEnv) serve(useBrowser, refresh bool) error {
	log := logrus.WithField("component", "Server")
	unified := rt.unified

	if err := database.ConnectWithConfig(rt.cfg.DatabaseURL, &unified.Database); err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(""); err != nil {
		log.Warnf("Migration warning: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := shared.NewMetricsRegistry()
	cacheService := services.NewCacheServiceWithConfig(unified.Cache.DefaultTTL, unified.Cache.MaxSize)

	eng := engine.New(rt.engineOptions(), metrics)
	universeService := services.NewUniverseService(database.DB, cacheService, eng)
	portfolioService := services.NewPortfolioService(database.DB, universeService, metrics)
	utilityService := services.NewUtilityService()

	var refreshJob *jobs.UniverseRefreshJob
	var breakerState func() string
	if rt.cfg.Credentials().Empty() {
		log.Warn("SCRAPER_USERNAME/SCRAPER_PASSWORD not set, screener refresh disabled")
	} else {
		fetcher := rt.fetcher(useBrowser, metrics)
		breakerState = fetcher.BreakerState
		refreshJob = jobs.NewUniverseRefreshJob(fetcher, universeService, unified.Scraper.Timeout+time.Minute)
		if refresh && unified.Service.RefreshInterval > 0 {
			refreshJob.Start(ctx, unified.Service.RefreshInterval)
			// Runs before database.Close so a cancelled refresh never writes to a closed pool.
			defer func() {
				stop()
				refreshJob.Wait()
			}()
		}
	}

	jobs.NewCacheCleanupJob(cacheService).Start(ctx, cacheCleanupInterval)

	if rt.cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN not set, admin routes are unauthenticated")
	}

	router := &handlers.Router{
		Universes:  handlers.NewUniverseHandler(universeService, utilityService, unified.Engine, unified.Screens),
		Portfolios: handlers.NewPortfolioHandler(portfolioService, universeService),
		Admin:      handlers.NewAdminHandler(refreshJob),
		System:     handlers.NewSystemHandler(database.DB, cacheService, utilityService.GetServiceMetrics(), breakerState),
		AdminToken: rt.cfg.AdminToken,
	}
	if unified.Service.EnableMetrics {
		router.Metrics = metrics
	}

	app := fiber.New(fiber.Config{
		AppName:      unified.Logging.ServiceName,
		BodyLimit:    unified.Service.BodyLimitBytes,
		ReadTimeout:  unified.Service.ReadTimeout,
		UnescapePath: true,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())
	router.Register(app)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server starting on port %s", rt.cfg.ServerPort)
		errCh <- app.Listen(":" + rt.cfg.ServerPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	utilityService.GetServiceMetrics().LogSummary()
	return app.ShutdownWithTimeout(10 * time.Second)
}
