package handlers

import (
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Router holds every handler served by the API.
type Router struct {
	Universes  *UniverseHandler
	Portfolios *PortfolioHandler
	Admin      *AdminHandler
	System     *SystemHandler
	Metrics    *shared.MetricsRegistry
	AdminToken string
}

// Register mounts the routes on app.
func (r *Router) Register(app *fiber.App) {
	app.Get("/health", r.System.Health)
	if r.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(r.Metrics.Handler()))
	}

	api := app.Group("/api/v1")

	// Universe Routes
	api.Post("/universes", r.Universes.Upload)
	api.Get("/universes", r.Universes.List)
	api.Get("/universes/:id/valuation", r.Universes.GetValuation)
	api.Get("/universes/:id/leaderboard", r.Universes.GetLeaderboard)
	api.Get("/universes/:id/export.csv", r.Universes.ExportCSV)
	api.Get("/universes/:id/report.html", r.Universes.ReportHTML)
	api.Get("/universes/:id/companies/:name", r.Universes.GetCompany)
	api.Get("/universes/:id/runs", r.Universes.GetRuns)

	// Portfolio Routes
	api.Post("/portfolios", r.Portfolios.Create)
	api.Get("/portfolios", r.Portfolios.List)
	api.Get("/portfolios/:id", r.Portfolios.Get)
	api.Put("/portfolios/:id", r.Portfolios.Rename)
	api.Delete("/portfolios/:id", r.Portfolios.Delete)
	api.Get("/portfolios/:id/review", r.Portfolios.Review)

	// Admin Routes
	admin := api.Group("/admin", RequireToken(r.AdminToken))
	admin.Post("/scrape", r.Admin.TriggerScrape)
	admin.Get("/stats", r.System.GetStats)
}
