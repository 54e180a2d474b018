package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
	"github.com/kharcha-app/kharcha/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *atomic.Int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls atomic.Int32
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Caller")
		switch owner := c.Get("X-Owner"); {
		case id == "":
		case owner != "":
			httpx.SetCaller(c, domain.SubAccount(id, owner))
		default:
			httpx.SetCaller(c, domain.Owner(id))
		}
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})
	app.Post("/fails", func(c *fiber.Ctx) error {
		calls.Add(1)
		return fiber.NewError(fiber.StatusConflict, "already processed")
	})
	return app, &calls
}

func post(t *testing.T, app *fiber.App, path, key, caller string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode, string(body)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, calls := setupTestApp(t)

	status, _ := post(t, app, "/resource", "", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, int32(0), calls.Load())
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupTestApp(t)

	status, first := post(t, app, "/resource", "abc123", "owner-1")
	require.Equal(t, fiber.StatusCreated, status)

	status, second := post(t, app, "/resource", "abc123", "owner-1")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	app, calls := setupTestApp(t)

	_, first := post(t, app, "/resource", "same-key", "owner-1")
	_, second := post(t, app, "/resource", "same-key", "owner-2")
	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyKeepsSubAccountsOfOneOwnerApart(t *testing.T) {
	app, calls := setupTestApp(t)

	send := func(sub string) (int, string) {
		req := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, "1")
		req.Header.Set("X-Caller", sub)
		req.Header.Set("X-Owner", "owner-1")
		resp, err := app.Test(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode, string(body)
	}

	status, first := send("sub-a")
	require.Equal(t, fiber.StatusCreated, status)
	status, second := send("sub-b")
	require.Equal(t, fiber.StatusCreated, status)
	assert.NotEqual(t, first, second)

	_, replay := send("sub-a")
	assert.JSONEq(t, first, replay)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyDoesNotCacheErrors(t *testing.T) {
	app, calls := setupTestApp(t)

	status, _ := post(t, app, "/fails", "k1", "owner-1")
	assert.Equal(t, fiber.StatusConflict, status)
	status, _ = post(t, app, "/fails", "k1", "owner-1")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyWithoutCachePassesThrough(t *testing.T) {
	app := fiber.New()
	app.Use(Idempotency(nil, time.Minute, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/resource", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
