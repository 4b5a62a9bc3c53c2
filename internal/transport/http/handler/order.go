package handler

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/internal/pricing"
	"github.com/sakashimaa/food-order/internal/service"
	"github.com/sakashimaa/food-order/internal/transport/http/middleware"
	"github.com/sakashimaa/food-order/pkg/mylogger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type createOrderItemRequest struct {
	CuisineID int64  `json:"cuisine_id" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gt=0,lte=1000"`
	Size      string `json:"size" validate:"required,oneof=half full"`
}

type createOrderRequest struct {
	Items               []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ClientDeclaredTotal *decimal.Decimal         `json:"client_declared_total" validate:"required"`
}

type updateStatusRequest struct {
	NewStatus string `json:"new_status" validate:"required"`
}

type orderItemResponse struct {
	ID              int64       `json:"id"`
	CuisineID       int64       `json:"cuisine_id"`
	Quantity        int         `json:"quantity"`
	Size            domain.Size `json:"size"`
	PriceAtPurchase json.Number `json:"price_at_purchase"`
}

type orderResponse struct {
	ID           int64               `json:"id"`
	UserID       int64               `json:"user_id"`
	RestaurantID int64               `json:"restaurant_id"`
	Status       domain.OrderStatus  `json:"status"`
	TotalPrice   json.Number         `json:"total_price"`
	CancelledBy  *domain.ActorKind   `json:"cancelled_by"`
	Items        []orderItemResponse `json:"items"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:              item.ID,
			CuisineID:       item.CuisineID,
			Quantity:        item.Quantity,
			Size:            item.Size,
			PriceAtPurchase: money(item.PriceAtPurchase),
		})
	}

	return orderResponse{
		ID:           o.ID,
		UserID:       o.UserID,
		RestaurantID: o.RestaurantID,
		Status:       o.Status,
		TotalPrice:   money(o.TotalPrice),
		CancelledBy:  o.CancelledBy,
		Items:        items,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

type OrderHandler struct {
	orders   service.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		validate: newValidator(),
		logger:   logger,
	}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)

	restaurantID, ok := paramID(c, "restaurantId")
	if !ok {
		return badRequest(c, "restaurantId must be a positive integer")
	}

	input := new(createOrderRequest)
	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(
			c.UserContext(),
			h.logger,
			"Failed to parse body in create",
			zap.Error(err),
		)

		return badRequest(c, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, err)
	}

	items := make([]pricing.RequestedItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, pricing.RequestedItem{
			CuisineID: item.CuisineID,
			Quantity:  item.Quantity,
			Size:      domain.Size(item.Size),
		})
	}

	order, err := h.orders.CreateOrder(c.UserContext(), actor, service.CreateOrderInput{
		RestaurantID:  restaurantID,
		Items:         items,
		DeclaredTotal: *input.ClientDeclaredTotal,
	})
	if err != nil {
		return writeError(c, h.logger, err, nil)
	}

	return c.Status(fiber.StatusCreated).JSON(toOrderResponse(order))
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)

	orderID, ok := paramID(c, "orderId")
	if !ok {
		return badRequest(c, "orderId must be a positive integer")
	}

	input := new(updateStatusRequest)
	if err := c.BodyParser(input); err != nil {
		return badRequest(c, "error parsing body")
	}

	if err := h.validate.Struct(input); err != nil {
		return validationFailed(c, err)
	}

	status, err := domain.ParseOrderStatus(input.NewStatus)
	if err != nil {
		return writeError(c, h.logger, err, nil)
	}

	order, err := h.orders.UpdateStatus(c.UserContext(), actor, orderID, status)
	if err != nil {
		return writeError(c, h.logger, err, nil)
	}

	return c.JSON(toOrderResponse(order))
}

// Cancel is the customer's cancellation. A state that can no longer be
// cancelled is a bad request here, while a lost race stays a conflict.
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)

	orderID, ok := paramID(c, "orderId")
	if !ok {
		return badRequest(c, "orderId must be a positive integer")
	}

	order, err := h.orders.CancelByUser(c.UserContext(), actor, orderID)
	if err != nil {
		return writeError(c, h.logger, err, statusOverride{
			domain.ErrInvalidTransition: fiber.StatusBadRequest,
		})
	}

	return c.JSON(toOrderResponse(order))
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)

	orderID, ok := paramID(c, "orderId")
	if !ok {
		return badRequest(c, "orderId must be a positive integer")
	}

	order, err := h.orders.GetOrder(c.UserContext(), actor, orderID)
	if err != nil {
		return writeError(c, h.logger, err, nil)
	}

	return c.JSON(toOrderResponse(order))
}

func (h *OrderHandler) MyOrders(c *fiber.Ctx) error {
	actor, _ := middleware.ActorFrom(c)

	orders, err := h.orders.ListOrders(c.UserContext(), actor)
	if err != nil {
		return writeError(c, h.logger, err, nil)
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}

	return c.JSON(fiber.Map{"orders": resp})
}
