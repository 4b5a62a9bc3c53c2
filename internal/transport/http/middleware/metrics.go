package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/food-order/internal/metrics"
)

// NewMetricsMiddleware counts requests by route pattern, so ids in paths do
// not explode label cardinality.
func NewMetricsMiddleware(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		code := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			} else {
				code = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		m.HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(code)).Inc()
		m.HTTPDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())

		return err
	}
}
