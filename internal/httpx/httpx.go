// Package httpx holds the Fiber glue shared by every resource handler.
package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
)

const (
	callerKey = "caller"
	// UserIDKey is kept for the access log and idempotency middleware.
	UserIDKey = "user_id"
)

// SetCaller stores the authenticated identity on the request.
func SetCaller(c *fiber.Ctx, caller domain.Caller) {
	c.Locals(callerKey, caller)
	c.Locals(UserIDKey, caller.ID)
}

// CallerFrom returns the identity stored by the JWT middleware.
func CallerFrom(c *fiber.Ctx) (domain.Caller, error) {
	caller, ok := c.Locals(callerKey).(domain.Caller)
	if !ok || caller.ID == "" {
		return domain.Caller{}, fiber.NewError(http.StatusUnauthorized, "missing caller identity")
	}
	return caller, nil
}

// Status maps a domain error kind to an HTTP status code.
func Status(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvoiceNumberExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error converts err into a *fiber.Error. Internal failures are not echoed.
func Error(err error) error {
	if err == nil {
		return nil
	}
	code := Status(err)
	if code == http.StatusInternalServerError {
		return fiber.NewError(code, "internal error")
	}
	return fiber.NewError(code, err.Error())
}

// Bind parses the JSON body into dst.
func Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Date parses YYYY-MM-DD or RFC 3339. Empty input yields the zero time.
func Date(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, domain.Validationf("invalid date %q", s)
	}
	return t, nil
}

// Query reads the listing filters: status, created_by, from, to, limit.
func Query(c *fiber.Ctx) (domain.Query, error) {
	q := domain.Query{Status: c.Query("status"), CreatedBy: c.Query("created_by")}
	var err error
	if q.From, err = Date(c.Query("from")); err != nil {
		return domain.Query{}, err
	}
	if q.To, err = Date(c.Query("to")); err != nil {
		return domain.Query{}, err
	}
	if !q.To.IsZero() && len(c.Query("to")) == len(time.DateOnly) {
		q.To = q.To.Add(24*time.Hour - time.Nanosecond)
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return domain.Query{}, domain.Validationf("invalid limit %q", raw)
		}
		q.Limit = n
	}
	return q, nil
}

// DeltaResponse is one wallet balance change.
type DeltaResponse struct {
	WalletID string          `json:"wallet_id"`
	Delta    decimal.Decimal `json:"delta"`
}

// EventResponse renders a materialized event for the caller.
func EventResponse(ev domain.Event) fiber.Map {
	return fiber.Map{
		"kind":           ev.Kind,
		"correlation_id": ev.CorrelationID,
		"net_delta":      ev.NetDelta(),
		"deltas":         Deltas(ev.Deltas),
		"at":             ev.At,
	}
}

// Deltas renders per-wallet balance changes.
func Deltas(in []domain.WalletDelta) []DeltaResponse {
	out := make([]DeltaResponse, 0, len(in))
	for _, d := range in {
		out = append(out, DeltaResponse{WalletID: d.WalletID, Delta: d.Delta})
	}
	return out
}
