package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any wallet mutation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a record that does not exist or does not belong to the caller's owner.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyProcessed marks a request or record whose state was already settled by someone else.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrInvoiceNumberExhausted is returned when no unique invoice number could be allocated.
	ErrInvoiceNumberExhausted = errors.New("invoice number allocation exhausted")

	// ErrInsufficientFunds is only returned when strict funds mode is enabled.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrForbidden marks an owner-only action attempted by a sub-account.
	ErrForbidden = errors.New("forbidden")
)

// Error pairs one of the sentinel kinds above with a human readable message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// Validationf builds a validation error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error for the given entity.
func NotFound(entity, id string) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf("%s %s", entity, id)}
}

// AlreadyProcessed builds an already-processed error.
func AlreadyProcessed(format string, args ...any) error {
	return &Error{Kind: ErrAlreadyProcessed, Msg: fmt.Sprintf(format, args...)}
}

// Forbidden builds a forbidden error.
func Forbidden(format string, args ...any) error {
	return &Error{Kind: ErrForbidden, Msg: fmt.Sprintf(format, args...)}
}

// InsufficientFunds builds an insufficient-funds error for a wallet.
func InsufficientFunds(walletID string) error {
	return &Error{Kind: ErrInsufficientFunds, Msg: fmt.Sprintf("wallet %s", walletID)}
}
