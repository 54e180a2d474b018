package middleware

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
	"github.com/kharcha-app/kharcha/internal/logging"
)

type stubVerifier map[string]domain.Caller

func (v stubVerifier) Verify(_ context.Context, token string) (domain.Caller, error) {
	caller, ok := v[token]
	if !ok {
		return domain.Caller{}, ErrTokenRejected
	}
	return caller, nil
}

func TestJWTAuthSetsCaller(t *testing.T) {
	verifier := stubVerifier{
		"good":   domain.SubAccount("sub-1", "owner-1"),
		"broken": {ID: "x", Role: domain.RoleOwner},
	}
	app := fiber.New()
	app.Use(JWTAuth(verifier))
	app.Get("/me", func(c *fiber.Ctx) error {
		caller, err := httpx.CallerFrom(c)
		if err != nil {
			return err
		}
		return c.SendString(caller.ID + "@" + caller.OwnerID)
	})

	cases := []struct {
		header string
		status int
	}{
		{"", fiber.StatusUnauthorized},
		{"Basic abc", fiber.StatusUnauthorized},
		{"Bearer nope", fiber.StatusUnauthorized},
		{"Bearer broken", fiber.StatusUnauthorized},
		{"Bearer good", fiber.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set(fiber.HeaderAuthorization, tc.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.header)
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 2, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	try := func(phone string) int {
		req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"phone":"`+phone+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, try("111"))
	assert.Equal(t, fiber.StatusOK, try("111"))
	assert.Equal(t, fiber.StatusTooManyRequests, try("111"))
	assert.Equal(t, fiber.StatusOK, try("222"))
}

func TestRequestIDEchoesOrMints(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		id, _ := c.Locals(RequestIDKey).(string)
		return c.SendString(id)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "trace-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "trace-1", resp.Header.Get(requestIDHeader))

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(requestIDHeader), 36)
}
