package invoice

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

func testApp(h *Handler, caller *domain.Caller) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		httpx.SetCaller(c, *caller)
		return c.Next()
	})
	app.Post("/invoices", h.Create)
	app.Post("/invoices/:id/approve", h.Approve)
	return app
}

func TestHandlerSubmitAndApproveOutInvoice(t *testing.T) {
	f := newFixture(t, false)
	caller := sub
	app := testApp(NewHandler(f.svc), &caller)

	body := `{"direction":"out","client_name":"Vendor","items":[{"description":"Cement","quantity":"4","unit_price":"200"}]}`
	req := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "800.00", created.Total.StringFixed(2))

	caller = owner
	req = httptest.NewRequest(http.MethodPost, "/invoices/"+created.ID+"/approve", strings.NewReader(`{"payment_method":"bank","wallet_id":"`+f.bank.ID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, f.balance(t, f.bank.ID).Equal(dec(1200)))

	req = httptest.NewRequest(http.MethodPost, "/invoices/"+created.ID+"/approve", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
