package service

import (
	"github.com/finbook/finbook/internal/domain"
)

// Structural validation of monetary fields and cross-field rules. Anything
// deeper (account existence, ownership, balance) belongs to the ledger's
// atomic unit, not here.

func validateCreateTransaction(req *domain.CreateTransactionRequest) error {
	if !req.Type.Valid() {
		return &domain.ErrValidation{Field: "type", Message: "must be INCOME, EXPENSE or TRANSFER"}
	}
	if req.Status != "" && !req.Status.Valid() {
		return &domain.ErrValidation{Field: "status", Message: "must be pending, completed or failed"}
	}
	if !req.Amount.IsPositive() {
		return &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if req.FeeAmount.IsNegative() {
		return &domain.ErrValidation{Field: "fee_amount", Message: "must not be negative"}
	}
	if req.AccountID == "" {
		return &domain.ErrValidation{Field: "account_id", Message: "required"}
	}
	return validateTransferFields(req.Type, req.AccountID, req.ToAccountID)
}

// validateEffective checks the merged result of an update, after omitted
// fields fell back to stored values.
func validateEffective(tx *domain.Transaction) error {
	if !tx.Type.Valid() {
		return &domain.ErrValidation{Field: "type", Message: "must be INCOME, EXPENSE or TRANSFER"}
	}
	if !tx.Status.Valid() {
		return &domain.ErrValidation{Field: "status", Message: "must be pending, completed or failed"}
	}
	if !tx.Amount.IsPositive() {
		return &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if tx.FeeAmount.IsNegative() {
		return &domain.ErrValidation{Field: "fee_amount", Message: "must not be negative"}
	}
	if tx.AccountID == "" {
		return &domain.ErrValidation{Field: "account_id", Message: "required"}
	}
	return validateTransferFields(tx.Type, tx.AccountID, tx.ToAccountID)
}

func validateTransferFields(typ domain.TransactionType, accountID, toAccountID string) error {
	if typ == domain.TypeTransfer {
		if toAccountID == "" {
			return &domain.ErrInvalidTransfer{Reason: "destination account required"}
		}
		if toAccountID == accountID {
			return &domain.ErrInvalidTransfer{Reason: "destination must differ from source"}
		}
	} else if toAccountID != "" {
		return &domain.ErrValidation{Field: "to_account_id", Message: "only allowed for TRANSFER"}
	}
	return nil
}
