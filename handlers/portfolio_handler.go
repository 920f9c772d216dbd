package handlers

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/fenilmodi00/valuation-backend/services"
	"github.com/fenilmodi00/valuation-backend/tabular"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type PortfolioHandler struct {
	Service   *services.PortfolioService
	Universes *services.UniverseService
}

func NewPortfolioHandler(service *services.PortfolioService, universes *services.UniverseService) *PortfolioHandler {
	return &PortfolioHandler{Service: service, Universes: universes}
}

// Create stores a portfolio from the multipart field "file".
func (h *PortfolioHandler) Create(c *fiber.Ctx) error {
	data, filename, err := uploadedFile(c)
	if err != nil {
		return respondError(c, err)
	}

	name := c.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	portfolio, err := h.Service.CreateFromCSV(c.UserContext(), name, data)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusCreated, portfolio)
}

func (h *PortfolioHandler) List(c *fiber.Ctx) error {
	portfolios, err := h.Service.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, portfolios)
}

func (h *PortfolioHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	portfolio, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, portfolio)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *PortfolioHandler) Rename(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req renameRequest
	if err := c.BodyParser(&req); err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.Service.Rename(c.UserContext(), id, req.Name); err != nil {
		return respondError(c, err)
	}
	return success(c, fiber.StatusOK, fiber.Map{"id": id, "name": strings.TrimSpace(req.Name)})
}

func (h *PortfolioHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Service.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Review merges the portfolio with a valued universe. Without a
// "universe" query parameter the most recent universe is used.
func (h *PortfolioHandler) Review(c *fiber.Ctx) error {
	portfolioID, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var universeID uuid.UUID
	if raw := c.Query("universe"); raw != "" {
		if universeID, err = uuid.Parse(raw); err != nil {
			return failure(c, fiber.StatusBadRequest, "invalid universe: "+raw)
		}
	} else {
		latest, err := h.Universes.Latest(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		universeID = latest.ID
	}

	rows, err := h.Service.Review(c.UserContext(), portfolioID, universeID)
	if err != nil {
		return respondError(c, err)
	}

	if c.Query("format", "json") == "csv" {
		var buf bytes.Buffer
		if err := tabular.WritePortfolio(&buf, rows); err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="portfolio_review.csv"`)
		return c.Send(buf.Bytes())
	}

	return success(c, fiber.StatusOK, fiber.Map{
		"universe_id": universeID,
		"rows":        rows,
	})
}
