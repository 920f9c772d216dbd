package handlers

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/fenilmodi00/valuation-backend/jobs"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AdminTokenHeader carries the admin token on admin requests.
const AdminTokenHeader = "X-Admin-Token"

type AdminHandler struct {
	RefreshJob *jobs.UniverseRefreshJob
}

func NewAdminHandler(refreshJob *jobs.UniverseRefreshJob) *AdminHandler {
	return &AdminHandler{RefreshJob: refreshJob}
}

// RequireToken rejects requests without the configured admin token.
// An empty token leaves the admin routes open.
func RequireToken(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}
		got := c.Get(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return failure(c, fiber.StatusUnauthorized, "invalid admin token")
		}
		return c.Next()
	}
}

// TriggerScrape runs the universe refresh job now and waits for it.
func (h *AdminHandler) TriggerScrape(c *fiber.Ctx) error {
	if h.RefreshJob == nil {
		return failure(c, fiber.StatusServiceUnavailable, "screener refresh is not configured")
	}
	logrus.Info("Manual universe refresh triggered via admin endpoint")

	startTime := time.Now()
	universe, err := h.RefreshJob.RunOnce(c.UserContext())
	if errors.Is(err, jobs.ErrRefreshInProgress) {
		return failure(c, fiber.StatusConflict, err.Error())
	}
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"data":     universe,
		"duration": time.Since(startTime).String(),
	})
}
