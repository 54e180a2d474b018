package transaction

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
)

func testApp(h *Handler, caller domain.Caller) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		httpx.SetCaller(c, caller)
		return c.Next()
	})
	app.Post("/transactions", h.Create)
	app.Get("/transactions", h.List)
	app.Delete("/transactions/:id", h.Delete)
	return app
}

func TestHandlerCreateAndDelete(t *testing.T) {
	f := newFixture(t, false)
	app := testApp(NewHandler(f.svc), owner)

	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{"amount":"120.50","direction":"debit","payment_method":"cash","occurred_on":"2024-03-01"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "debit", created.Direction)
	assert.Equal(t, 2024, created.OccurredOn.Year())

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/transactions/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/transactions/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerMapsValidation(t *testing.T) {
	f := newFixture(t, false)
	app := testApp(NewHandler(f.svc), owner)

	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{"amount":"-1","direction":"debit"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerForbidsSubAccount(t *testing.T) {
	f := newFixture(t, false)
	app := testApp(NewHandler(f.svc), domain.SubAccount("sub-1", ownerID))

	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(`{"amount":"10","direction":"debit"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
