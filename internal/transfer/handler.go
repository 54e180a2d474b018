package transfer

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/httpx"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	FromWalletID string          `json:"from_wallet_id"`
	ToWalletID   string          `json:"to_wallet_id"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	OccurredOn   string          `json:"occurred_on"`
}

// Create moves funds between two wallets of the caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	occurred, err := httpx.Date(req.OccurredOn)
	if err != nil {
		return httpx.Error(err)
	}

	res, err := h.service.Transfer(c.UserContext(), caller, TransferInput{
		FromWalletID: req.FromWalletID,
		ToWalletID:   req.ToWalletID,
		Amount:       req.Amount,
		Description:  req.Description,
		OccurredOn:   occurred,
	})
	if err != nil {
		return httpx.Error(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"correlation_id":        res.CorrelationID,
		"debit_transaction_id":  res.Debit.ID,
		"credit_transaction_id": res.Credit.ID,
		"from_balance":          res.FromBalance,
		"to_balance":            res.ToBalance,
		"completed_at":          res.Event.At,
	})
}
