package invoice

import "github.com/kharcha-app/kharcha/internal/domain"

// effect is the wallet direction an invoice applies while it sits in a status.
type effect string

const (
	effectNone   effect = ""
	effectCredit effect = effect(domain.Credit)
	effectDebit  effect = effect(domain.Debit)
)

// effectOf: an inbound invoice credits once paid; an outbound one debits once
// approved or paid. Every other status carries no wallet effect.
func effectOf(dir domain.InvoiceDirection, status domain.InvoiceStatus) effect {
	switch {
	case dir == domain.InvoiceIn && status == domain.InvoicePaid:
		return effectCredit
	case dir == domain.InvoiceOut && (status == domain.InvoicePaid || status == domain.InvoiceApproved):
		return effectDebit
	default:
		return effectNone
	}
}

var transitions = map[domain.InvoiceStatus][]domain.InvoiceStatus{
	domain.InvoiceDraft:    {domain.InvoicePending, domain.InvoiceSent, domain.InvoicePaid, domain.InvoiceApproved, domain.InvoiceRejected},
	domain.InvoicePending:  {domain.InvoiceDraft, domain.InvoiceSent, domain.InvoicePaid, domain.InvoiceApproved, domain.InvoiceRejected},
	domain.InvoiceSent:     {domain.InvoiceDraft, domain.InvoicePaid, domain.InvoiceApproved, domain.InvoiceRejected, domain.InvoiceOverdue},
	domain.InvoicePaid:     {domain.InvoiceSent},
	domain.InvoiceApproved: {domain.InvoicePaid, domain.InvoiceSent, domain.InvoiceOverdue},
	domain.InvoiceRejected: {domain.InvoiceDraft},
	domain.InvoiceOverdue:  {domain.InvoiceSent, domain.InvoicePaid, domain.InvoiceApproved, domain.InvoiceRejected},
}

// Transition validates a status change for an invoice of direction dir.
func Transition(dir domain.InvoiceDirection, from, to domain.InvoiceStatus) error {
	if !to.Valid() {
		return domain.Validationf("unknown invoice status %q", to)
	}
	if to == domain.InvoiceApproved && dir != domain.InvoiceOut {
		return domain.Validationf("only outbound invoices can be approved")
	}
	if from == to {
		return domain.AlreadyProcessed("invoice is already %s", to)
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return domain.Validationf("invoice cannot move from %s to %s", from, to)
}

// reviewable statuses still wait for the owner's decision.
func reviewable(status domain.InvoiceStatus) bool {
	switch status {
	case domain.InvoiceDraft, domain.InvoicePending, domain.InvoiceSent:
		return true
	}
	return false
}
