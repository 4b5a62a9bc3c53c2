package handler

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/pkg/mylogger"
	"github.com/sakashimaa/food-order/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var kinds = map[error]struct {
	name   string
	status int
}{
	domain.ErrInvalidRequest:            {"InvalidRequest", fiber.StatusBadRequest},
	domain.ErrNotFound:                  {"NotFound", fiber.StatusNotFound},
	domain.ErrForbidden:                 {"Forbidden", fiber.StatusForbidden},
	domain.ErrPriceMismatch:             {"PriceMismatch", fiber.StatusBadRequest},
	domain.ErrInvalidTransition:         {"InvalidTransition", fiber.StatusConflict},
	domain.ErrConflict:                  {"Conflict", fiber.StatusConflict},
	domain.ErrInfrastructureUnavailable: {"InfrastructureUnavailable", fiber.StatusServiceUnavailable},
}

// statusOverride changes the HTTP status of one error kind for a route.
type statusOverride map[error]int

// writeError is the only place where error kinds become HTTP responses.
// Errors outside the taxonomy are logged and rendered as a bare 500.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error, overrides statusOverride) error {
	kind := domain.Kind(err)
	if kind == nil {
		mylogger.Error(c.UserContext(), logger, "Request failed",
			zap.String("route", c.Route().Path),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal",
			"message": "internal error",
		})
	}

	k := kinds[kind]
	status := k.status
	if s, ok := overrides[kind]; ok {
		status = s
	}

	msg := err.Error()
	if kind == domain.ErrInfrastructureUnavailable {
		msg = "service temporarily unavailable"
	}

	body := fiber.Map{
		"error":   k.name,
		"message": msg,
	}

	var mismatch *domain.PriceMismatchError
	if errors.As(err, &mismatch) {
		body["client"] = money(mismatch.Client)
		body["server"] = money(mismatch.Server)
	}

	if status >= fiber.StatusInternalServerError || kind == domain.ErrInfrastructureUnavailable {
		mylogger.Warn(c.UserContext(), logger, "Request degraded", zap.Error(err))
	}

	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "InvalidRequest",
		"message": msg,
	})
}

func validationFailed(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "InvalidRequest",
		"message": "validation failed",
		"fields":  utils.FormatValidationError(err),
	})
}

func paramID(c *fiber.Ctx, name string) (int64, bool) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int64(id), true
}

// money renders an amount as a JSON number.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
