package handlers

import (
	"errors"
	"io"

	"github.com/fenilmodi00/valuation-backend/engine"
	"github.com/fenilmodi00/valuation-backend/shared"
	"github.com/fenilmodi00/valuation-backend/tabular"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func failure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	var missing *engine.MissingFieldError
	if errors.As(err, &missing) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success":         false,
			"error":           err.Error(),
			"missing_columns": missing.Columns,
		})
	}
	if errors.Is(err, tabular.ErrEmptyTable) {
		return failure(c, fiber.StatusBadRequest, err.Error())
	}

	switch shared.ErrorCategoryOf(err) {
	case shared.ErrorCategoryNotFound:
		return failure(c, fiber.StatusNotFound, err.Error())
	case shared.ErrorCategoryValidation:
		var serviceErr *shared.ServiceError
		if errors.As(err, &serviceErr) && serviceErr.Details != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
				"details": serviceErr.Details,
			})
		}
		return failure(c, fiber.StatusBadRequest, err.Error())
	}

	var serviceErr *shared.ServiceError
	if errors.As(err, &serviceErr) {
		serviceErr.LogError()
	} else {
		logrus.WithFields(logrus.Fields{
			"component": "API",
			"path":      c.Path(),
		}).WithError(err).Error("Request failed")
	}
	return failure(c, fiber.StatusInternalServerError, err.Error())
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, shared.NewServiceError(shared.ErrorCategoryValidation, "INVALID_ID",
			"invalid "+param+": "+c.Params(param), "API", c.Path(), false, err).
			WithDetails(fiber.Map{"param": param, "value": c.Params(param)})
	}
	return id, nil
}

// uploadedFile returns the contents of the multipart field "file".
func uploadedFile(c *fiber.Ctx) ([]byte, string, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, "", shared.NewServiceError(shared.ErrorCategoryValidation, "FILE_REQUIRED",
			"multipart field \"file\" is required", "API", c.Path(), false, err)
	}

	f, err := header.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}
