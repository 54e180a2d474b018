package delegation

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
	app.Post("/requests", h.Submit)
	app.Post("/requests/:id/approve", h.Approve)
	app.Post("/requests/:id/reject", h.Reject)
	app.Delete("/requests/:id", h.Delete)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestHandlerSubmitApproveDelete(t *testing.T) {
	f := newFixture(t, false)
	caller := sub
	app := testApp(NewHandler(f.svc), &caller)

	resp := do(t, app, http.MethodPost, "/requests", `{"kind":"expense","payload":{"amount":"300","category":"fuel","payment_method":"cash"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Kind   string `json:"kind"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, "expense", created.Kind)

	resp = do(t, app, http.MethodPost, "/requests/"+created.ID+"/approve", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	caller = owner
	resp = do(t, app, http.MethodPost, "/requests/"+created.ID+"/approve", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(700)))

	resp = do(t, app, http.MethodPost, "/requests/"+created.ID+"/approve", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, app, http.MethodDelete, "/requests/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1000)))

	resp = do(t, app, http.MethodDelete, "/requests/"+created.ID, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandlerRejectsUnknownKind(t *testing.T) {
	f := newFixture(t, false)
	caller := sub
	app := testApp(NewHandler(f.svc), &caller)

	resp := do(t, app, http.MethodPost, "/requests", `{"kind":"loan","payload":{}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/requests", `{"kind":"transaction","payload":{"amount":"10","direction":"sideways"}}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
