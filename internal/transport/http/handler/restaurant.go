package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/internal/service"
	"github.com/sakashimaa/food-order/internal/transport/http/middleware"
	"go.uber.org/zap"
)

type statusUpdateRequest struct {
	OperatingStatus *string `json:"operating_status" validate:"omitempty,min=1,max=20"`
	KitchenStatus   *string `json:"kitchen_status" validate:"omitempty,min=1,max=20"`
	DeliveryStatus  *string `json:"delivery_status" validate:"omitempty,min=1,max=20"`
}

type statusWriteResponse struct {
	domain.RestaurantStatus
	CacheSynced bool `json:"cache_synced"`
}

type RestaurantHandler struct {
	restaurants service.RestaurantService
	validate    *validator.Validate
	logger      *zap.Logger
}

func NewRestaurantHandler(restaurants service.RestaurantService, logger *zap.Logger) *RestaurantHandler {
	return &RestaurantHandler{
		restaurants: restaurants,
		validate:    newValidator(),
		logger:      logger,
	}
}

func (h *RestaurantHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)

	input := new(statusUpdateRequest)
	if err := c.BodyParser(input); err != nil {
		return badRequest(c, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, err)
	}

	res, err := h.restaurants.UpdateStatus(c.UserContext(), actor, domain.StatusUpdate{
		OperatingStatus: input.OperatingStatus,
		KitchenStatus:   input.KitchenStatus,
		DeliveryStatus:  input.DeliveryStatus,
	})
	if err != nil {
		return writeError(c, h.logger, err, nil)
	}

	return c.JSON(statusWriteResponse{
		RestaurantStatus: res.Status,
		CacheSynced:      res.CacheSynced,
	})
}

func (h *RestaurantHandler) GetStatus(c *fiber.Ctx) error {
	restaurantID, ok := paramID(c, "restaurantId")
	if !ok {
		return badRequest(c, "restaurantId must be a positive integer")
	}

	st, err := h.restaurants.GetStatus(c.UserContext(), restaurantID)
	if err != nil {
		return writeError(c, h.logger, err, nil)
	}

	return c.JSON(st)
}

func (h *RestaurantHandler) List(c *fiber.Ctx) error {
	restaurants, err := h.restaurants.List(c.UserContext())
	if err != nil {
		return writeError(c, h.logger, err, nil)
	}

	return c.JSON(fiber.Map{"restaurants": restaurants})
}
