package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind names what happened to a correlation id.
type EventKind string

const (
	EventExpenseCreated     EventKind = "expense.created"
	EventTransactionCreated EventKind = "transaction.created"
	EventTransferCreated    EventKind = "transfer.created"
	EventAdjustment         EventKind = "wallet.adjusted"
	EventInvoiceStatus      EventKind = "invoice.status_changed"
	EventRequestApproved    EventKind = "request.approved"
	EventRequestRejected    EventKind = "request.rejected"
	EventReversed           EventKind = "correlation.reversed"
)

// Event is returned after a ledger operation commits; the audit layer may record it.
type Event struct {
	Kind          EventKind
	OwnerID       string
	CallerID      string
	CorrelationID CorrelationID
	Deltas        []WalletDelta
	At            time.Time
}

// NetDelta sums the deltas across wallets.
func (e Event) NetDelta() decimal.Decimal {
	total := decimal.Zero
	for _, d := range e.Deltas {
		total = total.Add(d.Delta)
	}
	return total
}

// Query filters the read-only listing surface. Zero values are unbounded.
type Query struct {
	OwnerID   string
	Status    string
	CreatedBy string
	From      time.Time
	To        time.Time
	Limit     int
}

// InRange reports whether t falls in [From, To].
func (q Query) InRange(t time.Time) bool {
	if !q.From.IsZero() && t.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && t.After(q.To) {
		return false
	}
	return true
}
