package handlers

import (
	"database/sql"
	"time"

	"github.com/fenilmodi00/valuation-backend/database"
	"github.com/fenilmodi00/valuation-backend/services"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/gofiber/fiber/v2"
)

// SystemHandler reports liveness and runtime statistics.
type SystemHandler struct {
	DB           *sql.DB
	Cache        *services.CacheService
	Lookups      *shared.ServiceMetrics
	BreakerState func() string
}

func NewSystemHandler(db *sql.DB, cache *services.CacheService, lookups *shared.ServiceMetrics, breakerState func() string) *SystemHandler {
	return &SystemHandler{DB: db, Cache: cache, Lookups: lookups, BreakerState: breakerState}
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// GetStats returns connection pool, schema, cache and scraper state.
func (h *SystemHandler) GetStats(c *fiber.Ctx) error {
	stats := make(map[string]interface{})

	if h.DB != nil {
		dbStats := h.DB.Stats()
		stats["database_stats"] = map[string]interface{}{
			"open_connections":     dbStats.OpenConnections,
			"in_use":               dbStats.InUse,
			"idle":                 dbStats.Idle,
			"wait_count":           dbStats.WaitCount,
			"wait_duration_ms":     dbStats.WaitDuration.Milliseconds(),
			"max_idle_closed":      dbStats.MaxIdleClosed,
			"max_idle_time_closed": dbStats.MaxIdleTimeClosed,
			"max_lifetime_closed":  dbStats.MaxLifetimeClosed,
		}

		missing, err := database.ValidateSchema(c.UserContext(), h.DB)
		if err != nil {
			stats["schema_error"] = err.Error()
		} else {
			stats["missing_tables"] = missing
		}
	}

	if h.Cache != nil {
		stats["cache_stats"] = h.Cache.Stats()
	}
	if h.Lookups != nil {
		stats["company_lookups"] = map[string]interface{}{
			"success_rate":  h.Lookups.GetSuccessRate(),
			"exact":         h.Lookups.Counter(services.LookupExact),
			"normalized":    h.Lookups.Counter(services.LookupNormalized),
			"no_match":      h.Lookups.Counter(services.LookupNoMatch),
			"not_available": h.Lookups.Counter(services.LookupNotAvailable),
		}
	}
	if h.BreakerState != nil {
		stats["scraper_breaker"] = h.BreakerState()
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}
