package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Error types for consistent error handling across finbook.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrForbidden indicates the caller's scope does not grant access to an account.
type ErrForbidden struct {
	AccountID string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: account %s is outside the caller's scope", e.AccountID)
}

// ErrValidation indicates a structurally invalid payload.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientBalance indicates the source account cannot cover the
// total deduction (amount + fee).
type ErrInsufficientBalance struct {
	AccountID string
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *ErrInsufficientBalance) Error() string {
	return fmt.Sprintf("insufficient balance on account %s: available=%s required=%s",
		e.AccountID, e.Available.String(), e.Required.String())
}

// ErrInvalidTransfer indicates a transfer without a destination, or with the
// source as its own destination.
type ErrInvalidTransfer struct {
	Reason string
}

func (e *ErrInvalidTransfer) Error() string {
	return fmt.Sprintf("invalid transfer: %s", e.Reason)
}

// ErrStorage indicates the atomic unit could not commit. Nothing partial was
// written, so the whole operation is safe to retry.
type ErrStorage struct {
	Op  string
	Err error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("storage failure [%s]: %v", e.Op, e.Err)
}

func (e *ErrStorage) Unwrap() error {
	return e.Err
}

// ErrUnauthorized indicates a missing or invalid bearer token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
