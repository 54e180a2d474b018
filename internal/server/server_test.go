package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/config"
	"github.com/kharcha-app/kharcha/internal/logging"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppName:              "kharcha-test",
		Env:                  "test",
		JWTSecret:            "access",
		RefreshSecret:        "refresh",
		AccessTokenTTL:       time.Minute,
		RefreshTokenTTL:      time.Hour,
		InvoiceNumberRetries: 3,
	}
	srv, err := New(cfg, nil, nil, logging.Discard())
	require.NoError(t, err)
	return srv.App()
}

func call(t *testing.T, app *fiber.App, method, path, token, body string, out any) int {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func login(t *testing.T, app *fiber.App, phone, pin string) string {
	t.Helper()
	var out struct {
		AccessToken string `json:"access_token"`
	}
	status := call(t, app, http.MethodPost, "/api/v1/auth/login", "", `{"phone":"`+phone+`","pin":"`+pin+`"}`, &out)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

type walletList struct {
	Wallets []struct {
		ID      string          `json:"id"`
		Kind    string          `json:"kind"`
		Balance decimal.Decimal `json:"balance"`
	} `json:"wallets"`
	Total decimal.Decimal `json:"total"`
}

func TestDelegatedExpenseOverHTTP(t *testing.T) {
	app := newApp(t)

	var reg struct {
		CashWalletID string `json:"cash_wallet_id"`
	}
	status := call(t, app, http.MethodPost, "/api/v1/accounts/register", "", `{"phone":"700","pin":"1111","name":"Owner","opening_cash":"1000"}`, &reg)
	require.Equal(t, http.StatusCreated, status)
	ownerToken := login(t, app, "700", "1111")

	status = call(t, app, http.MethodPost, "/api/v1/sub-accounts", ownerToken, `{"phone":"701","pin":"2222","name":"Clerk"}`, nil)
	require.Equal(t, http.StatusCreated, status)
	subToken := login(t, app, "701", "2222")

	status = call(t, app, http.MethodPost, "/api/v1/expenses", subToken, `{"amount":"300","category":"fuel"}`, nil)
	assert.Equal(t, http.StatusForbidden, status)

	var req struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	status = call(t, app, http.MethodPost, "/api/v1/requests", subToken, `{"kind":"expense","payload":{"amount":"300","category":"fuel","payment_method":"cash"}}`, &req)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "pending", req.Status)

	status = call(t, app, http.MethodPost, "/api/v1/requests/"+req.ID+"/approve", ownerToken, `{"payment_method":"cash"}`, nil)
	require.Equal(t, http.StatusOK, status)

	var wallets walletList
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/wallets", ownerToken, "", &wallets))
	require.Len(t, wallets.Wallets, 1)
	assert.Equal(t, reg.CashWalletID, wallets.Wallets[0].ID)
	assert.True(t, wallets.Total.Equal(decimal.NewFromInt(700)), wallets.Total.String())

	status = call(t, app, http.MethodPost, "/api/v1/requests/"+req.ID+"/approve", ownerToken, "", nil)
	assert.Equal(t, http.StatusConflict, status)

	status = call(t, app, http.MethodDelete, "/api/v1/requests/"+req.ID, ownerToken, "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/wallets", ownerToken, "", &wallets))
	assert.True(t, wallets.Total.Equal(decimal.NewFromInt(1000)), wallets.Total.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newApp(t)

	var body struct {
		Error string `json:"error"`
	}
	status := call(t, app, http.MethodGet, "/api/v1/wallets", "", "", &body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "missing bearer token", body.Error)

	status = call(t, app, http.MethodGet, "/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	app := newApp(t)
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/v1/accounts/register", "", `{"phone":"800","pin":"1234"}`, nil))
	token := login(t, app, "800", "1234")

	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/me", token, "", nil))
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, "/api/v1/auth/logout", token, "", nil))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, http.MethodGet, "/api/v1/me", token, "", nil))
}

func TestDebtRepaymentAndCatalogueInvoiceOverHTTP(t *testing.T) {
	app := newApp(t)
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/v1/accounts/register", "", `{"phone":"900","pin":"4321","opening_cash":"100"}`, nil))
	token := login(t, app, "900", "4321")

	var d struct {
		ID           string `json:"id"`
		Code         string `json:"code"`
		Installments []struct {
			ID string `json:"id"`
		} `json:"installments"`
	}
	status := call(t, app, http.MethodPost, "/api/v1/debts", token, `{"counterparty":"Ravi","total":"900","installments":3,"start_on":"2025-01-10"}`, &d)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "DEBT-0001", d.Code)
	require.Len(t, d.Installments, 3)

	var paid struct {
		Transaction struct {
			DebtID string `json:"debt_id"`
			EMIID  string `json:"emi_id"`
		} `json:"transaction"`
	}
	status = call(t, app, http.MethodPost, "/api/v1/debts/"+d.ID+"/payments", token, `{"amount":"300","payment_method":"cash"}`, &paid)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, d.ID, paid.Transaction.DebtID)
	assert.Equal(t, d.Installments[0].ID, paid.Transaction.EMIID)

	var wallets walletList
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/v1/wallets", token, "", &wallets))
	assert.True(t, wallets.Total.Equal(decimal.NewFromInt(400)), wallets.Total.String())

	var product struct {
		ID string `json:"id"`
	}
	status = call(t, app, http.MethodPost, "/api/v1/products", token, `{"name":"Tiles box","unit_price":"250","stock":"10"}`, &product)
	require.Equal(t, http.StatusCreated, status)

	var inv struct {
		Total decimal.Decimal `json:"total"`
		Items []struct {
			Description string `json:"description"`
			ProductID   string `json:"product_id"`
		} `json:"items"`
	}
	status = call(t, app, http.MethodPost, "/api/v1/invoices", token, `{"direction":"out","items":[{"product_id":"`+product.ID+`","quantity":"4"}]}`, &inv)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(1000)), inv.Total.String())
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Tiles box", inv.Items[0].Description)
	assert.Equal(t, product.ID, inv.Items[0].ProductID)
}
