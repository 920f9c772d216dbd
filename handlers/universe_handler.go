package handlers

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fenilmodi00/valuation-backend/engine"
	"github.com/fenilmodi00/valuation-backend/models"
	"github.com/fenilmodi00/valuation-backend/report"
	"github.com/fenilmodi00/valuation-backend/services"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/fenilmodi00/valuation-backend/tabular"
	"github.com/gofiber/fiber/v2"
)

type UniverseHandler struct {
	Service         *services.UniverseService
	Utility         *services.UtilityService
	Screens         shared.ScreensConfig
	LeaderboardSize int
}

func NewUniverseHandler(service *services.UniverseService, utility *services.UtilityService, engineCfg shared.EngineConfig, screens shared.ScreensConfig) *UniverseHandler {
	size := engineCfg.LeaderboardSize
	if size <= 0 {
		size = engine.DefaultLeaderboardSize
	}
	return &UniverseHandler{
		Service:         service,
		Utility:         utility,
		Screens:         screens,
		LeaderboardSize: size,
	}
}

// Upload stores a universe from the multipart field "file".
func (h *UniverseHandler) Upload(c *fiber.Ctx) error {
	data, filename, err := uploadedFile(c)
	if err != nil {
		return respondError(c, err)
	}

	name := c.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	universe, err := h.Service.Store(c.UserContext(), name, models.UniverseSourceUpload, data)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusCreated, universe)
}

func (h *UniverseHandler) List(c *fiber.Ctx) error {
	universes, err := h.Service.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, universes)
}

// valued runs the engine over the universe named by :id.
func (h *UniverseHandler) valued(c *fiber.Ctx) (*engine.Result, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	return h.Service.Value(c.UserContext(), id)
}

// GetValuation returns every row ranked by gain, with the run summary.
func (h *UniverseHandler) GetValuation(c *fiber.Ctx) error {
	result, err := h.valued(c)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"records":  engine.Rank(result.Records),
		"summary":  result.Summary,
		"failures": len(result.Failures),
	})
}

// GetLeaderboard returns the top rows of one segment.
func (h *UniverseHandler) GetLeaderboard(c *fiber.Ctx) error {
	segment := c.Query("segment", models.SegmentNonSME)
	if segment != models.SegmentSME && segment != models.SegmentNonSME {
		return failure(c, fiber.StatusBadRequest, fmt.Sprintf("segment must be %q or %q", models.SegmentSME, models.SegmentNonSME))
	}

	opts := engine.LeaderboardOptions{
		Segment: segment,
		Limit:   c.QueryInt("limit", h.LeaderboardSize),
	}
	if c.QueryBool("screen", false) {
		nonSME, sme := engine.ScreensFrom(h.Screens)
		opts.Screen = nonSME
		if segment == models.SegmentSME {
			opts.Screen = sme
		}
	}

	result, err := h.valued(c)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"segment":  segment,
		"screened": opts.Screen != nil,
		"records":  engine.Leaderboard(result.Records, opts),
	})
}

// ExportCSV downloads the ranked universe.
func (h *UniverseHandler) ExportCSV(c *fiber.Ctx) error {
	result, err := h.valued(c)
	if err != nil {
		return respondError(c, err)
	}

	var buf bytes.Buffer
	if err := tabular.WriteExport(&buf, engine.Rank(result.Records), c.QueryBool("extended", false)); err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="valuation.csv"`)
	return c.Send(buf.Bytes())
}

// ReportHTML renders both leaderboards as a standalone page.
func (h *UniverseHandler) ReportHTML(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	universe, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	result, err := h.Service.Value(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	var nonSME, sme *engine.ScreenThresholds
	if c.QueryBool("screen", false) {
		nonSME, sme = engine.ScreensFrom(h.Screens)
	}
	md := report.LeaderboardSet(universe.Name, result.Records, c.QueryInt("limit", h.LeaderboardSize), nonSME, sme)

	page, err := report.Page(universe.Name, md)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(page)
}

// GetCompany returns the valuation and health summary of one company,
// looked up by name, slug or instrument code.
func (h *UniverseHandler) GetCompany(c *fiber.Ctx) error {
	result, err := h.valued(c)
	if err != nil {
		return respondError(c, err)
	}

	query := c.Params("name")
	company, ok := h.Utility.FindCompany(result.Records, query)
	if !ok {
		return failure(c, fiber.StatusNotFound, fmt.Sprintf("company %q not found", query))
	}
	return success(c, fiber.StatusOK, fiber.Map{
		"valuation": company,
		"health":    report.Health(company.CompanyRecord),
	})
}

// GetRuns lists the valuation audit trail of a universe.
func (h *UniverseHandler) GetRuns(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	runs, err := h.Service.Runs(c.UserContext(), id, c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, runs)
}
