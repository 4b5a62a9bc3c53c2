package http

import (
	"errors"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/sakashimaa/food-order/internal/metrics"
	"github.com/sakashimaa/food-order/internal/transport/http/handler"
	"github.com/sakashimaa/food-order/internal/transport/http/middleware"
)

type Handlers struct {
	Order        *handler.OrderHandler
	Restaurant   *handler.RestaurantHandler
	Notification *handler.NotificationHandler
}

type AppConfig struct {
	ReadTimeout       time.Duration
	LimiterMax        int
	LimiterExpiration time.Duration
	Metrics           *metrics.Metrics
}

// NewApp builds the fiber app with tracing, metrics, rate limiting and the
// health probe. A zero LimiterMax disables rate limiting.
func NewApp(cfg AppConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "food-order",
		ReadTimeout:           cfg.ReadTimeout,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "internal error"

			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
				msg = fe.Message
			}

			return c.Status(code).JSON(fiber.Map{
				"error":   "Internal",
				"message": msg,
			})
		},
	})

	app.Use(otelfiber.Middleware())

	if cfg.Metrics != nil {
		app.Use(middleware.NewMetricsMiddleware(cfg.Metrics))
	}

	if cfg.LimiterMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.LimiterMax,
			Expiration: cfg.LimiterExpiration,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/health"
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":   "TooManyRequests",
					"message": "Too many requests. Try again later.",
				})
			},
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	return app
}

func RegisterRoutes(app *fiber.App, h *Handlers, secret string) {
	auth := middleware.NewAuthMiddleware(secret, false)

	app.Get("/restaurants", h.Restaurant.List)

	restaurant := app.Group("/restaurant")
	restaurant.Get("/:restaurantId/status", h.Restaurant.GetStatus)
	restaurant.Patch("/status", auth, middleware.RequireRole(domain.ActorRestaurant), h.Restaurant.UpdateStatus)

	order := app.Group("/order")
	order.Get("/notifications/stream", middleware.NewAuthMiddleware(secret, true), h.Notification.Stream)
	order.Post("/create/:restaurantId", auth, h.Order.Create)
	order.Patch("/restaurant/:orderId/status", auth, middleware.RequireRole(domain.ActorRestaurant), h.Order.UpdateStatus)
	order.Patch("/user/cancel/:orderId", auth, h.Order.Cancel)
	order.Get("/user/my-orders", auth, middleware.RequireRole(domain.ActorUser), h.Order.MyOrders)
	order.Get("/restaurant/my-orders", auth, middleware.RequireRole(domain.ActorRestaurant), h.Order.MyOrders)
	order.Get("/:orderId", auth, h.Order.Get)
}
