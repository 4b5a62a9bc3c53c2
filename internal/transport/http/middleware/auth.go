package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/food-order/internal/domain"
)

const actorKey = "actor"

// NewAuthMiddleware resolves the caller from a Bearer token. With
// allowQueryToken the token may also come as ?token=, which EventSource
// clients need because they cannot set headers.
func NewAuthMiddleware(secret string, allowQueryToken bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok && allowQueryToken {
			token = c.Query("token")
			ok = token != ""
		}
		if !ok {
			return unauthorized(c, "missing or malformed Authorization header")
		}

		claims, err := ValidateToken(token, secret)
		if err != nil {
			return unauthorized(c, "invalid token")
		}

		if claims.Subject <= 0 {
			return unauthorized(c, "token has no subject")
		}

		actor := domain.NewUser(int64(claims.Subject))
		if claims.IsRestaurant {
			actor = domain.NewRestaurant(int64(claims.Subject))
		}

		SetActor(c, actor)
		return c.Next()
	}
}

// RequireRole rejects callers of another kind with 403.
func RequireRole(kind domain.ActorKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return unauthorized(c, "missing actor")
		}

		if actor.Kind != kind {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "Forbidden",
				"message": "only a " + string(kind) + " can use this endpoint",
			})
		}

		return c.Next()
	}
}

func SetActor(c *fiber.Ctx, actor domain.Actor) {
	c.Locals(actorKey, actor)
}

func ActorFrom(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "Unauthorized",
		"message": msg,
	})
}
