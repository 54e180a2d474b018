package delegation

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
)

// Handler exposes delegation request endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a delegation handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type submitRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type reviewRequest struct {
	PaymentMethod string `json:"payment_method"`
	WalletID      string `json:"wallet_id"`
	Reason        string `json:"reason"`
}

type response struct {
	ID            string         `json:"id"`
	SubAccountID  string         `json:"sub_account_id"`
	Kind          string         `json:"kind"`
	Payload       domain.Payload `json:"payload"`
	Status        string         `json:"status"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	ReviewerID    string         `json:"reviewer_id,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func toResponse(r domain.DelegationRequest) response {
	return response{
		ID:            r.ID,
		SubAccountID:  r.SubAccountID,
		Kind:          string(r.Kind),
		Payload:       r.Payload,
		Status:        string(r.Status),
		CorrelationID: string(r.CorrelationID),
		ReviewerID:    r.ReviewerID,
		ReviewedAt:    r.ReviewedAt,
		Reason:        r.Reason,
		CreatedAt:     r.CreatedAt,
	}
}

func bindReview(c *fiber.Ctx) (reviewRequest, error) {
	var req reviewRequest
	if len(c.Body()) == 0 {
		return req, nil
	}
	err := httpx.Bind(c, &req)
	return req, err
}

// Submit queues a request from a sub-account.
func (h *Handler) Submit(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req submitRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	payload, err := domain.DecodePayload(domain.RequestKind(req.Kind), req.Payload)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	out, err := h.service.Submit(c.UserContext(), caller, payload)
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(out))
}

// List returns requests matching the query filters.
func (h *Handler) List(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	q, err := httpx.Query(c)
	if err != nil {
		return httpx.Error(err)
	}
	list, err := h.service.List(c.UserContext(), caller, q)
	if err != nil {
		return httpx.Error(err)
	}
	out := make([]response, 0, len(list))
	for _, r := range list {
		out = append(out, toResponse(r))
	}
	return c.JSON(fiber.Map{"requests": out})
}

// Get returns one request.
func (h *Handler) Get(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	r, err := h.service.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(r))
}

// Approve materializes a pending request.
func (h *Handler) Approve(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	req, err := bindReview(c)
	if err != nil {
		return err
	}
	out, err := h.service.Approve(c.UserContext(), caller, c.Params("id"), ApproveInput{
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		WalletID:      req.WalletID,
	})
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(fiber.Map{"request": toResponse(out.Request), "event": httpx.EventResponse(out.Event)})
}

// Reject closes a pending request.
func (h *Handler) Reject(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	req, err := bindReview(c)
	if err != nil {
		return err
	}
	out, err := h.service.Reject(c.UserContext(), caller, c.Params("id"), req.Reason)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(out))
}

// Delete reverses an approved request.
func (h *Handler) Delete(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	ev, err := h.service.Delete(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(httpx.EventResponse(ev))
}

// DownloadPermission tells the rendering layer whether the caller may fetch an invoice document.
func (h *Handler) DownloadPermission(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	invoiceID := c.Params("id")
	ok, err := h.service.CanDownload(c.UserContext(), caller, invoiceID)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(fiber.Map{"invoice_id": invoiceID, "allowed": ok})
}
