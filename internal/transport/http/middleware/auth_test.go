package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sakashimaa/food-order/internal/domain"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-secret"

func sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newApp(allowQuery bool) *fiber.App {
	app := fiber.New()
	app.Get("/me", NewAuthMiddleware(secret, allowQuery), func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"kind": actor.Kind, "id": actor.ID})
	})
	return app
}

func call(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestSubject_AcceptsNumberAndString(t *testing.T) {
	var c Claims
	require.NoError(t, json.Unmarshal([]byte(`{"sub":42,"is_restaurant":true}`), &c))
	require.Equal(t, Subject(42), c.Subject)
	require.True(t, c.IsRestaurant)

	require.NoError(t, json.Unmarshal([]byte(`{"sub":"7"}`), &c))
	require.Equal(t, Subject(7), c.Subject)

	require.Error(t, json.Unmarshal([]byte(`{"sub":"alice@example.com"}`), &c))
}

func TestAuthMiddleware_ResolvesActor(t *testing.T) {
	app := newApp(false)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{"sub": 10, "is_restaurant": true}))
	code, body := call(t, app, req)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(domain.ActorRestaurant), body["kind"])
	require.Equal(t, 10.0, body["id"])

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.MapClaims{"sub": "3"}))
	code, body = call(t, app, req)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, string(domain.ActorUser), body["kind"])
	require.Equal(t, 3.0, body["id"])
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	app := newApp(false)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer abc.def.ghi"},
		{"no subject", "Bearer " + sign(t, jwt.MapClaims{"is_restaurant": false})},
		{"expired", "Bearer " + sign(t, jwt.MapClaims{"sub": 1, "exp": 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			code, body := call(t, app, req)
			require.Equal(t, http.StatusUnauthorized, code)
			require.Equal(t, "Unauthorized", body["error"])
		})
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	tok := sign(t, jwt.MapClaims{"sub": 5})

	code, _ := call(t, newApp(false), httptest.NewRequest(http.MethodGet, "/me?token="+tok, nil))
	require.Equal(t, http.StatusUnauthorized, code)

	code, body := call(t, newApp(true), httptest.NewRequest(http.MethodGet, "/me?token="+tok, nil))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 5.0, body["id"])
}

func TestAuthMiddleware_RejectsOtherAlgorithms(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": 1}).SignedString([]byte(secret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	code, _ := call(t, newApp(false), req)
	require.Equal(t, http.StatusUnauthorized, code)
}
