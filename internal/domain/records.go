package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CorrelationID links an expense, its mirror transaction and an optional mirror
// invoice as one logical financial event.
type CorrelationID string

// PaymentType distinguishes plain outflows from invoice-backed ones.
type PaymentType string

const (
	PaymentTypeCash    PaymentType = "cash"
	PaymentTypeInvoice PaymentType = "invoice-backed"
)

func (p PaymentType) Valid() bool { return p == PaymentTypeCash || p == PaymentTypeInvoice }

// Expense is a recorded cash outflow.
type Expense struct {
	ID            string
	OwnerID       string
	CorrelationID CorrelationID
	Amount        decimal.Decimal
	Category      string
	Description   string
	PaymentMethod PaymentMethod
	PaymentType   PaymentType
	WalletID      string
	ReceiptRef    string
	SpentOn       time.Time
	CreatedBy     string
	RequestID     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TransactionTag marks internal bookkeeping rows.
type TransactionTag string

const (
	TagNone TransactionTag = ""
	// TagReversal offsets an earlier effect of the same correlation id.
	TagReversal TransactionTag = "reversal"
	// TagAdjustment is a manual balance correction; it counts as funding and is never reversed.
	TagAdjustment TransactionTag = "adjustment"
)

// Transaction is a generic ledger movement against one wallet.
type Transaction struct {
	ID            string
	OwnerID       string
	CorrelationID CorrelationID
	Amount        decimal.Decimal
	Direction     Direction
	PaymentMethod PaymentMethod
	WalletID      string
	Tag           TransactionTag
	Category      string
	Description   string
	AttachmentRef string
	ExpenseID     string
	InvoiceID     string
	DebtID        string
	EMIID         string
	CreatedBy     string
	RequestID     string
	OccurredOn    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Effect is the signed balance change this row caused.
func (t Transaction) Effect() decimal.Decimal {
	return t.Direction.Signed(t.Amount)
}

// InvoiceDirection: in = money owed to the owner, out = money owed by the owner.
type InvoiceDirection string

const (
	InvoiceIn  InvoiceDirection = "in"
	InvoiceOut InvoiceDirection = "out"
)

func (d InvoiceDirection) Valid() bool { return d == InvoiceIn || d == InvoiceOut }

// InvoiceStatus is a closed set; transitions are checked in invoice.Transition.
type InvoiceStatus string

const (
	InvoiceDraft    InvoiceStatus = "draft"
	InvoicePending  InvoiceStatus = "pending"
	InvoiceSent     InvoiceStatus = "sent"
	InvoicePaid     InvoiceStatus = "paid"
	InvoiceApproved InvoiceStatus = "approved"
	InvoiceRejected InvoiceStatus = "rejected"
	InvoiceOverdue  InvoiceStatus = "overdue"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoicePending, InvoiceSent, InvoicePaid, InvoiceApproved, InvoiceRejected, InvoiceOverdue:
		return true
	}
	return false
}

// Invoice is an inbound or outbound billable document.
type Invoice struct {
	ID              string
	OwnerID         string
	CorrelationID   CorrelationID
	Direction       InvoiceDirection
	Number          string
	Status          InvoiceStatus
	ClientName      string
	ClientEmail     string
	ClientPhone     string
	ClientAddress   string
	Notes           string
	Subtotal        decimal.Decimal
	CGSTRate        decimal.Decimal
	SGSTRate        decimal.Decimal
	IGSTRate        decimal.Decimal
	OtherTax        decimal.Decimal
	TaxTotal        decimal.Decimal
	Total           decimal.Decimal
	ReceivedAmount  decimal.Decimal
	WalletID        string
	ExpenseID       string
	CreatedBy       string
	ReviewedBy      string
	ReviewedAt      *time.Time
	RejectionReason string
	IssuedOn        time.Time
	DueOn           *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []InvoiceItem
}

// InvoiceItem is a line stored verbatim for the rendering layer.
type InvoiceItem struct {
	ID          string
	InvoiceID   string
	Position    int
	Description string
	ProductID   string
	SACCode     string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
}
