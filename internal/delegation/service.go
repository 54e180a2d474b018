// Package delegation queues sub-account requests for the owner's review and
// materializes approved ones exactly once.
package delegation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/expense"
	"github.com/kharcha-app/kharcha/internal/ledger"
	"github.com/kharcha-app/kharcha/internal/notification"
	"github.com/kharcha-app/kharcha/internal/reversal"
	"github.com/kharcha-app/kharcha/internal/transaction"
)

// Service is the delegation and approval workflow.
type Service struct {
	store        ledger.Store
	expenses     *expense.Service
	transactions *transaction.Service
	reversal     *reversal.Service
	notifier     notification.Notifier
	logger       *slog.Logger
	now          func() time.Time
}

// NewService constructs the workflow.
func NewService(store ledger.Store, expenses *expense.Service, transactions *transaction.Service, rev *reversal.Service, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:        store,
		expenses:     expenses,
		transactions: transactions,
		reversal:     rev,
		notifier:     notifier,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Submit queues a pending request. It never touches a wallet.
func (s *Service) Submit(ctx context.Context, caller domain.Caller, payload domain.Payload) (domain.DelegationRequest, error) {
	if err := caller.Validate(); err != nil {
		return domain.DelegationRequest{}, err
	}
	if caller.IsOwner() {
		return domain.DelegationRequest{}, domain.Validationf("owners record entries directly")
	}
	if payload == nil {
		return domain.DelegationRequest{}, domain.Validationf("payload is required")
	}
	if err := payload.Validate(); err != nil {
		return domain.DelegationRequest{}, err
	}
	now := s.now()
	req := domain.DelegationRequest{
		ID:           uuid.NewString(),
		OwnerID:      caller.OwnerID,
		SubAccountID: caller.ID,
		Kind:         payload.Kind(),
		Payload:      payload,
		Status:       domain.RequestPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if p, ok := payload.(domain.InvoiceDownloadPayload); ok {
			if _, err := tx.GetInvoice(ctx, caller.OwnerID, p.InvoiceID); err != nil {
				return err
			}
		}
		return tx.InsertRequest(ctx, req)
	})
	if err != nil {
		return domain.DelegationRequest{}, err
	}
	s.logger.Info("request submitted",
		slog.String("owner_id", req.OwnerID),
		slog.String("request_id", req.ID),
		slog.String("kind", string(req.Kind)),
	)
	return req, nil
}

// ApproveInput optionally overrides the wallet named in the payload.
type ApproveInput struct {
	PaymentMethod domain.PaymentMethod
	WalletID      string
}

// Outcome is the approved request and what its materialization did.
type Outcome struct {
	Request domain.DelegationRequest
	Event   domain.Event
	Expense *expense.Result
	Txn     *domain.Transaction
}

// Approve re-checks the request is still pending under its row lock, calls the
// matching manager once, records the resulting correlation id and marks the
// request approved, all in one unit of work. Concurrent approvals of the same
// request materialize it once; the others fail with domain.ErrAlreadyProcessed.
func (s *Service) Approve(ctx context.Context, caller domain.Caller, id string, in ApproveInput) (Outcome, error) {
	if err := caller.RequireOwner("approving a request"); err != nil {
		return Outcome{}, err
	}
	var out Outcome
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		req, err := tx.LockRequest(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		if req.Status != domain.RequestPending {
			return domain.AlreadyProcessed("request %s is already %s", req.ID, req.Status)
		}
		author := domain.SubAccount(req.SubAccountID, req.OwnerID)

		switch p := req.Payload.(type) {
		case domain.ExpenseRequestPayload:
			input := expense.FromPayload(p)
			if in.PaymentMethod != "" || in.WalletID != "" {
				input.PaymentMethod, input.WalletID = in.PaymentMethod, in.WalletID
			}
			res, err := s.expenses.CreateInTx(ctx, tx, author, req.ID, input)
			if err != nil {
				return err
			}
			out.Expense = &res
			out.Event = res.Event
			req.CorrelationID = res.Expense.CorrelationID
		case domain.TransactionRequestPayload:
			input := transaction.FromPayload(p)
			if in.PaymentMethod != "" || in.WalletID != "" {
				input.PaymentMethod, input.WalletID = in.PaymentMethod, in.WalletID
			}
			t, ev, err := s.transactions.CreateInTx(ctx, tx, author, req.ID, input)
			if err != nil {
				return err
			}
			out.Txn = &t
			out.Event = ev
			req.CorrelationID = t.CorrelationID
		case domain.InvoiceDownloadPayload:
			if _, err := tx.GetInvoice(ctx, req.OwnerID, p.InvoiceID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("request %s has unsupported payload %T", req.ID, req.Payload)
		}

		now := s.now()
		req.Status = domain.RequestApproved
		req.ReviewerID = caller.ID
		req.ReviewedAt = &now
		req.UpdatedAt = now
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		out.Request = req
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case out.Expense != nil:
		s.expenses.Committed(ctx, *out.Expense)
	case out.Txn != nil:
		s.transactions.Committed(ctx, out.Event)
	}
	out.Event.Kind = domain.EventRequestApproved
	out.Event.OwnerID = out.Request.OwnerID
	out.Event.CallerID = caller.ID
	out.Event.CorrelationID = out.Request.CorrelationID
	out.Event.At = *out.Request.ReviewedAt
	s.logger.Info("request approved",
		slog.String("owner_id", out.Request.OwnerID),
		slog.String("request_id", out.Request.ID),
		slog.String("correlation_id", string(out.Request.CorrelationID)),
		slog.String("delta", out.Event.NetDelta().StringFixed(2)),
	)
	notification.Deliver(ctx, s.notifier, s.logger, out.Event)
	return out, nil
}

// Reject closes a pending request with no side effect.
func (s *Service) Reject(ctx context.Context, caller domain.Caller, id, reason string) (domain.DelegationRequest, error) {
	if err := caller.RequireOwner("rejecting a request"); err != nil {
		return domain.DelegationRequest{}, err
	}
	var req domain.DelegationRequest
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		req, err = tx.LockRequest(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		if req.Status != domain.RequestPending {
			return domain.AlreadyProcessed("request %s is already %s", req.ID, req.Status)
		}
		now := s.now()
		req.Status = domain.RequestRejected
		req.ReviewerID = caller.ID
		req.ReviewedAt = &now
		req.Reason = strings.TrimSpace(reason)
		req.UpdatedAt = now
		return tx.UpdateRequest(ctx, req)
	})
	if err != nil {
		return domain.DelegationRequest{}, err
	}
	notification.Deliver(ctx, s.notifier, s.logger, domain.Event{
		Kind:     domain.EventRequestRejected,
		OwnerID:  req.OwnerID,
		CallerID: caller.ID,
		At:       *req.ReviewedAt,
	})
	return req, nil
}

// Delete undoes an approved request: its materialized records are reversed
// and removed exactly as deleting them directly would, and the request is
// marked deleted. Download approvals are simply withdrawn.
func (s *Service) Delete(ctx context.Context, caller domain.Caller, id string) (domain.Event, error) {
	if err := caller.RequireOwner("deleting a request"); err != nil {
		return domain.Event{}, err
	}
	var ev domain.Event
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		peek, err := tx.GetRequest(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		if peek.CorrelationID != "" {
			if err := tx.LockCorrelation(ctx, caller.OwnerID, peek.CorrelationID); err != nil {
				return fmt.Errorf("lock correlation: %w", err)
			}
		}
		req, err := tx.LockRequest(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		switch req.Status {
		case domain.RequestDeleted:
			return domain.AlreadyProcessed("request %s is already deleted", req.ID)
		case domain.RequestPending, domain.RequestRejected:
			return domain.Validationf("only approved requests can be deleted, %s is %s", req.ID, req.Status)
		}
		if req.CorrelationID == "" {
			now := s.now()
			req.Status = domain.RequestDeleted
			req.UpdatedAt = now
			ev = domain.Event{Kind: domain.EventReversed, OwnerID: req.OwnerID, At: now}
			return tx.UpdateRequest(ctx, req)
		}
		ev, err = s.reversal.ReverseAndDeleteInTx(ctx, tx, caller.OwnerID, req.CorrelationID)
		return err
	})
	if err != nil {
		return domain.Event{}, err
	}
	s.reversal.Committed(ctx, caller, ev)
	return ev, nil
}

// Get returns one request. Sub-accounts only see their own.
func (s *Service) Get(ctx context.Context, caller domain.Caller, id string) (domain.DelegationRequest, error) {
	if err := caller.Validate(); err != nil {
		return domain.DelegationRequest{}, err
	}
	var req domain.DelegationRequest
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		req, err = tx.GetRequest(ctx, caller.OwnerID, id)
		return err
	})
	if err != nil {
		return domain.DelegationRequest{}, err
	}
	if !caller.IsOwner() && req.SubAccountID != caller.ID {
		return domain.DelegationRequest{}, domain.NotFound("request", id)
	}
	return req, nil
}

// List returns requests of the caller's owner; q.CreatedBy filters by sub-account.
func (s *Service) List(ctx context.Context, caller domain.Caller, q domain.Query) ([]domain.DelegationRequest, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	if q.Status != "" && !domain.RequestStatus(q.Status).Valid() {
		return nil, domain.Validationf("unknown request status %q", q.Status)
	}
	q.OwnerID = caller.OwnerID
	if !caller.IsOwner() {
		q.CreatedBy = caller.ID
	}
	var out []domain.DelegationRequest
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.ListRequests(ctx, q)
		return err
	})
	return out, err
}

// CanDownload reports whether caller may fetch the rendered invoice document:
// owners always can, sub-accounts once an invoice-download request for it was
// approved and not withdrawn.
func (s *Service) CanDownload(ctx context.Context, caller domain.Caller, invoiceID string) (bool, error) {
	if err := caller.Validate(); err != nil {
		return false, err
	}
	if caller.IsOwner() {
		return true, nil
	}
	reqs, err := s.List(ctx, caller, domain.Query{Status: string(domain.RequestApproved)})
	if err != nil {
		return false, err
	}
	for _, r := range reqs {
		if p, ok := r.Payload.(domain.InvoiceDownloadPayload); ok && p.InvoiceID == invoiceID {
			return true, nil
		}
	}
	return false, nil
}
