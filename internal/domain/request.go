package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RequestKind discriminates the payload of a DelegationRequest.
type RequestKind string

const (
	RequestExpense         RequestKind = "expense"
	RequestTransaction     RequestKind = "transaction"
	RequestInvoiceDownload RequestKind = "invoice-download"
)

// RequestStatus: pending -> approved | rejected, approved -> deleted.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestDeleted  RequestStatus = "deleted"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestDeleted:
		return true
	}
	return false
}

// Payload is the closed set of request shapes. Only types in this package implement it.
type Payload interface {
	Kind() RequestKind
	Validate() error
	sealed()
}

// ExpenseRequestPayload carries the would-be expense of a sub-account.
type ExpenseRequestPayload struct {
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description,omitempty"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentType   PaymentType     `json:"payment_type"`
	WalletID      string          `json:"wallet_id,omitempty"`
	ReceiptRef    string          `json:"receipt_ref,omitempty"`
	SpentOn       time.Time       `json:"spent_on"`
}

func (ExpenseRequestPayload) Kind() RequestKind { return RequestExpense }
func (ExpenseRequestPayload) sealed()           {}

func (p ExpenseRequestPayload) Validate() error {
	if !p.Amount.IsPositive() {
		return Validationf("amount must be positive")
	}
	if p.Category == "" {
		return Validationf("category is required")
	}
	if p.PaymentMethod != "" && !p.PaymentMethod.Valid() {
		return Validationf("unknown payment method %q", p.PaymentMethod)
	}
	if p.PaymentType != "" && !p.PaymentType.Valid() {
		return Validationf("unknown payment type %q", p.PaymentType)
	}
	return nil
}

// TransactionRequestPayload carries the would-be transaction of a sub-account.
type TransactionRequestPayload struct {
	Amount        decimal.Decimal `json:"amount"`
	Direction     Direction       `json:"direction"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	WalletID      string          `json:"wallet_id,omitempty"`
	Category      string          `json:"category,omitempty"`
	Description   string          `json:"description,omitempty"`
	AttachmentRef string          `json:"attachment_ref,omitempty"`
	OccurredOn    time.Time       `json:"occurred_on"`
}

func (TransactionRequestPayload) Kind() RequestKind { return RequestTransaction }
func (TransactionRequestPayload) sealed()           {}

func (p TransactionRequestPayload) Validate() error {
	if !p.Amount.IsPositive() {
		return Validationf("amount must be positive")
	}
	if !p.Direction.Valid() {
		return Validationf("unknown direction %q", p.Direction)
	}
	if p.PaymentMethod != "" && !p.PaymentMethod.Valid() {
		return Validationf("unknown payment method %q", p.PaymentMethod)
	}
	return nil
}

// InvoiceDownloadPayload asks permission to download an owner's invoice document.
type InvoiceDownloadPayload struct {
	InvoiceID string `json:"invoice_id"`
}

func (InvoiceDownloadPayload) Kind() RequestKind { return RequestInvoiceDownload }
func (InvoiceDownloadPayload) sealed()           {}

func (p InvoiceDownloadPayload) Validate() error {
	if p.InvoiceID == "" {
		return Validationf("invoice_id is required")
	}
	return nil
}

// DelegationRequest is a sub-account action waiting for the owner's review.
type DelegationRequest struct {
	ID            string
	OwnerID       string
	SubAccountID  string
	Kind          RequestKind
	Payload       Payload
	Status        RequestStatus
	CorrelationID CorrelationID
	ReviewerID    string
	ReviewedAt    *time.Time
	Reason        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EncodePayload serialises a payload for storage.
func EncodePayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload restores a payload stored under kind.
func DecodePayload(kind RequestKind, raw []byte) (Payload, error) {
	switch kind {
	case RequestExpense:
		var p ExpenseRequestPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode expense payload: %w", err)
		}
		return p, nil
	case RequestTransaction:
		var p TransactionRequestPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode transaction payload: %w", err)
		}
		return p, nil
	case RequestInvoiceDownload:
		var p InvoiceDownloadPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode invoice download payload: %w", err)
		}
		return p, nil
	default:
		return nil, Validationf("unknown request kind %q", kind)
	}
}
