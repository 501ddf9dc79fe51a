package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/bakery/internal/apperrors"
	"github.com/example/bakery/internal/middleware"
	"github.com/example/bakery/internal/models"
	"github.com/example/bakery/internal/utils"
)

// ErrorHandler renders every error as the standard failure envelope.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		code := apperrors.CodeStorage
		message := err.Error()

		var appErr *apperrors.Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
			status = appErr.HTTPStatus()
			code = appErr.Code
			message = appErr.Error()
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			code = codeForStatus(status)
			message = fiberErr.Message
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error": fiber.Map{
				"code":    code,
				"message": message,
			},
		})
	}
}

func codeForStatus(status int) apperrors.Code {
	switch status {
	case fiber.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	case fiber.StatusForbidden:
		return apperrors.CodeForbidden
	case fiber.StatusNotFound:
		return apperrors.CodeNotFound
	case fiber.StatusConflict:
		return apperrors.CodeDuplicateCode
	}
	if status >= fiber.StatusBadRequest && status < fiber.StatusInternalServerError {
		return apperrors.CodeValidation
	}
	return apperrors.CodeStorage
}

func currentIdentity(c *fiber.Ctx) models.Identity {
	identity, _ := middleware.GetCurrentIdentity(c)
	return identity
}

func requireIdentity(c *fiber.Ctx) (models.Identity, error) {
	identity, ok := middleware.GetCurrentIdentity(c)
	if !ok {
		return models.Identity{}, apperrors.Unauthorized("authentication required")
	}
	return identity, nil
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid id")
	}
	return id, nil
}

func paginationMeta(page, pageSize int, total int64) fiber.Map {
	return fiber.Map{
		"current_page":   page,
		"items_per_page": pageSize,
		"total_items":    total,
		"total_pages":    utils.TotalPages(total, pageSize),
	}
}
