// Package service provides the business logic layer (use cases).
// Ledger is the engine that creates, updates and deletes transactions while
// keeping account balances consistent: every operation runs inside a single
// storage transaction, and balances move only through the signed-effect
// formulas below.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/infra/observability"
	"github.com/finbook/finbook/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerOptions carries the two observed-behavior switches documented in
// DESIGN.md. Defaults preserve the behavior of the system this replaces.
type LedgerOptions struct {
	// EnforceDestinationOwnership runs the ownership check on a transfer's
	// destination account as well. Off by default: the destination gets an
	// existence check only, which allows "withdraw from org to personal".
	EnforceDestinationOwnership bool

	// BalanceAllStatuses applies balance effects to pending and failed
	// transactions too, not only completed ones. On by default.
	BalanceAllStatuses bool
}

// DefaultLedgerOptions returns the observed-behavior defaults.
func DefaultLedgerOptions() LedgerOptions {
	return LedgerOptions{EnforceDestinationOwnership: false, BalanceAllStatuses: true}
}

// Ledger is the transaction mutation engine.
type Ledger struct {
	store        port.Store
	auth         *Authorizer
	opts         LedgerOptions
	accountCache port.Cache[*domain.FinanceAccount]
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewLedger creates the ledger engine.
func NewLedger(store port.Store, auth *Authorizer, opts LedgerOptions, accountCache port.Cache[*domain.FinanceAccount], metrics *observability.Metrics, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:        store,
		auth:         auth,
		opts:         opts,
		accountCache: accountCache,
		metrics:      metrics,
		logger:       logger,
	}
}

// ============================================================
// Balance arithmetic
// ============================================================

// netIncome is amount - fee: the credit applied for an INCOME.
func netIncome(t *domain.Transaction) decimal.Decimal {
	return t.Amount.Sub(t.FeeAmount)
}

// totalDeduction is amount + fee: the debit applied for an EXPENSE or the
// source side of a TRANSFER. The fee is consumed, never transferred.
func totalDeduction(t *domain.Transaction) decimal.Decimal {
	return t.Amount.Add(t.FeeAmount)
}

// effectApplies reports whether t's balance effect is (or was) applied,
// given the status-gating option.
func (l *Ledger) effectApplies(t *domain.Transaction) bool {
	return l.opts.BalanceAllStatuses || t.Status == domain.StatusCompleted
}

// applyEffect applies t's balance effect inside tx. Deductions go through
// DeductBalance so the floor check and the write are one atomic step.
func (l *Ledger) applyEffect(ctx context.Context, tx port.LedgerTx, t *domain.Transaction) error {
	switch t.Type {
	case domain.TypeIncome:
		return tx.ApplyBalanceDelta(ctx, t.AccountID, netIncome(t))
	case domain.TypeExpense:
		return tx.DeductBalance(ctx, t.AccountID, totalDeduction(t))
	case domain.TypeTransfer:
		if err := tx.DeductBalance(ctx, t.AccountID, totalDeduction(t)); err != nil {
			return err
		}
		return tx.ApplyBalanceDelta(ctx, t.ToAccountID, t.Amount)
	}
	return &domain.ErrValidation{Field: "type", Message: "unknown transaction type"}
}

// revertEffect applies the algebraic inverse of t's effect. Reversal never
// carries a floor check: the balance must reflect reality even if negative.
func (l *Ledger) revertEffect(ctx context.Context, tx port.LedgerTx, t *domain.Transaction) error {
	switch t.Type {
	case domain.TypeIncome:
		return tx.ApplyBalanceDelta(ctx, t.AccountID, netIncome(t).Neg())
	case domain.TypeExpense:
		return tx.ApplyBalanceDelta(ctx, t.AccountID, totalDeduction(t))
	case domain.TypeTransfer:
		if err := tx.ApplyBalanceDelta(ctx, t.AccountID, totalDeduction(t)); err != nil {
			return err
		}
		return tx.ApplyBalanceDelta(ctx, t.ToAccountID, t.Amount.Neg())
	}
	return &domain.ErrValidation{Field: "type", Message: "unknown transaction type"}
}

// checkDestination loads a transfer's destination and, depending on options,
// authorizes it. Existence is always required.
func (l *Ledger) checkDestination(ctx context.Context, tx port.LedgerTx, toAccountID string, scope domain.CallerScope) error {
	dest, err := tx.GetAccount(ctx, toAccountID)
	if err != nil {
		return err
	}
	if l.opts.EnforceDestinationOwnership {
		return l.auth.Authorize(dest, scope)
	}
	return nil
}

// ============================================================
// CreateTransaction
// ============================================================

// CreateTransaction validates the payload, authorizes the source account,
// applies the balance effect and persists the record in one atomic unit.
func (l *Ledger) CreateTransaction(ctx context.Context, scope domain.CallerScope, req *domain.CreateTransactionRequest) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.CreateTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("caller.user_id", scope.UserID),
		attribute.String("transaction.type", string(req.Type)),
	)

	start := time.Now()

	if err := validateCreateTransaction(req); err != nil {
		l.metrics.RecordLedgerOp("create", start, err)
		return nil, err
	}

	now := time.Now().UTC()
	record := &domain.Transaction{
		ID:             uuid.New().String(),
		Type:           req.Type,
		Status:         req.Status,
		Amount:         req.Amount,
		FeeAmount:      req.FeeAmount,
		AccountID:      req.AccountID,
		ToAccountID:    req.ToAccountID,
		CategoryID:     req.CategoryID,
		PayeeID:        req.PayeeID,
		SubscriptionID: req.SubscriptionID,
		TagIDs:         req.TagIDs,
		Description:    req.Description,
		Date:           req.Date,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if record.Status == "" {
		record.Status = domain.StatusCompleted
	}
	if record.Date.IsZero() {
		record.Date = now
	}

	err := l.store.InTx(ctx, func(tx port.LedgerTx) error {
		src, err := tx.GetAccount(ctx, record.AccountID)
		if err != nil {
			return err
		}
		if err := l.auth.Authorize(src, scope); err != nil {
			return err
		}
		if record.Type == domain.TypeTransfer {
			if err := l.checkDestination(ctx, tx, record.ToAccountID, scope); err != nil {
				return err
			}
		}
		if l.effectApplies(record) {
			if err := l.applyEffect(ctx, tx, record); err != nil {
				return err
			}
		}
		return tx.InsertTransaction(ctx, record)
	})

	l.metrics.RecordLedgerOp("create", start, err)
	if err != nil {
		l.observeFailure("create", record.AccountID, err)
		return nil, err
	}

	l.invalidateAccounts(record.AccountID, record.ToAccountID)
	l.logger.Info("transaction created",
		zap.String("transaction_id", record.ID),
		zap.String("type", string(record.Type)),
		zap.String("account_id", record.AccountID),
		zap.String("amount", record.Amount.String()),
	)
	return record, nil
}

// ============================================================
// UpdateTransaction
// ============================================================

// UpdateTransaction reverts the stored effect, merges the partial payload and
// re-applies the new effect, all in one atomic unit. The ownership check on
// the (possibly unchanged) source account runs again after the reversal.
func (l *Ledger) UpdateTransaction(ctx context.Context, scope domain.CallerScope, id string, req *domain.UpdateTransactionRequest) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.UpdateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	start := time.Now()
	var updated *domain.Transaction

	err := l.store.InTx(ctx, func(tx port.LedgerTx) error {
		existing, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		oldSrc, err := tx.GetAccount(ctx, existing.AccountID)
		if err != nil {
			return err
		}
		if err := l.auth.Authorize(oldSrc, scope); err != nil {
			return err
		}

		// Undo the stored effect before anything else; the new values may
		// point at entirely different accounts.
		if l.effectApplies(existing) {
			if err := l.revertEffect(ctx, tx, existing); err != nil {
				return err
			}
		}

		merged := mergeUpdate(existing, req)
		if err := validateEffective(merged); err != nil {
			return err
		}

		newSrc, err := tx.GetAccount(ctx, merged.AccountID)
		if err != nil {
			return err
		}
		if err := l.auth.Authorize(newSrc, scope); err != nil {
			return err
		}
		if merged.Type == domain.TypeTransfer {
			if err := l.checkDestination(ctx, tx, merged.ToAccountID, scope); err != nil {
				return err
			}
		}

		// The insufficient-balance check inside applyEffect sees the
		// post-reversal balance, since the reversal above is part of the
		// same storage transaction.
		if l.effectApplies(merged) {
			if err := l.applyEffect(ctx, tx, merged); err != nil {
				return err
			}
		}

		merged.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateTransaction(ctx, merged); err != nil {
			return err
		}
		updated = merged
		return nil
	})

	l.metrics.RecordLedgerOp("update", start, err)
	if err != nil {
		l.observeFailure("update", id, err)
		return nil, err
	}

	l.invalidateAccounts(updated.AccountID, updated.ToAccountID)
	l.logger.Info("transaction updated",
		zap.String("transaction_id", updated.ID),
		zap.String("type", string(updated.Type)),
		zap.String("account_id", updated.AccountID),
	)
	return updated, nil
}

// mergeUpdate resolves the effective new values: any field omitted from the
// payload falls back to the stored value. Clearing to_account_id happens
// implicitly when the type changes away from TRANSFER.
func mergeUpdate(existing *domain.Transaction, req *domain.UpdateTransactionRequest) *domain.Transaction {
	merged := *existing
	merged.TagIDs = append([]string(nil), existing.TagIDs...)

	if req.Type != nil {
		merged.Type = *req.Type
	}
	if req.Status != nil {
		merged.Status = *req.Status
	}
	if req.Amount != nil {
		merged.Amount = *req.Amount
	}
	if req.FeeAmount != nil {
		merged.FeeAmount = *req.FeeAmount
	}
	if req.AccountID != nil {
		merged.AccountID = *req.AccountID
	}
	if req.ToAccountID != nil {
		merged.ToAccountID = *req.ToAccountID
	}
	if req.CategoryID != nil {
		merged.CategoryID = *req.CategoryID
	}
	if req.PayeeID != nil {
		merged.PayeeID = *req.PayeeID
	}
	if req.SubscriptionID != nil {
		merged.SubscriptionID = *req.SubscriptionID
	}
	if req.TagIDs != nil {
		merged.TagIDs = append([]string(nil), (*req.TagIDs)...)
	}
	if req.Description != nil {
		merged.Description = *req.Description
	}
	if req.Date != nil {
		merged.Date = *req.Date
	}
	if merged.Type != domain.TypeTransfer && req.ToAccountID == nil {
		merged.ToAccountID = ""
	}
	return &merged
}

// ============================================================
// DeleteTransaction
// ============================================================

// DeleteTransaction reverts the stored effect and removes the record in one
// atomic unit. No balance floor applies to reversal: deleting an income may
// legitimately drive a balance negative.
func (l *Ledger) DeleteTransaction(ctx context.Context, scope domain.CallerScope, id string) error {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	start := time.Now()
	var accountID, toAccountID string

	err := l.store.InTx(ctx, func(tx port.LedgerTx) error {
		existing, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		src, err := tx.GetAccount(ctx, existing.AccountID)
		if err != nil {
			return err
		}
		if err := l.auth.Authorize(src, scope); err != nil {
			return err
		}
		if l.effectApplies(existing) {
			if err := l.revertEffect(ctx, tx, existing); err != nil {
				return err
			}
		}
		accountID, toAccountID = existing.AccountID, existing.ToAccountID
		return tx.DeleteTransaction(ctx, id)
	})

	l.metrics.RecordLedgerOp("delete", start, err)
	if err != nil {
		l.observeFailure("delete", id, err)
		return err
	}

	l.invalidateAccounts(accountID, toAccountID)
	l.logger.Info("transaction deleted", zap.String("transaction_id", id))
	return nil
}

// ============================================================
// Reads (thin pass-throughs)
// ============================================================

// GetTransaction returns a transaction the caller may see.
func (l *Ledger) GetTransaction(ctx context.Context, scope domain.CallerScope, id string) (*domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.GetTransaction")
	defer span.End()

	t, err := l.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	acct, err := l.store.GetAccount(ctx, t.AccountID)
	if err != nil {
		return nil, err
	}
	if err := l.auth.Authorize(acct, scope); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions returns transactions on accounts within the caller's scope.
func (l *Ledger) ListTransactions(ctx context.Context, scope domain.CallerScope, filter domain.ListTransactionsFilter) ([]domain.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.ListTransactions")
	defer span.End()

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return l.store.ListTransactions(ctx, scope, filter)
}

// ============================================================
// Internals
// ============================================================

func (l *Ledger) invalidateAccounts(ids ...string) {
	if l.accountCache == nil {
		return
	}
	for _, id := range ids {
		if id != "" {
			l.accountCache.Delete(id)
		}
	}
}

func (l *Ledger) observeFailure(op, subject string, err error) {
	var insufficient *domain.ErrInsufficientBalance
	if errors.As(err, &insufficient) {
		l.metrics.IncrInsufficientBalance()
		l.logger.Warn("insufficient balance",
			zap.String("op", op),
			zap.String("account_id", insufficient.AccountID),
			zap.String("available", insufficient.Available.String()),
			zap.String("required", insufficient.Required.String()),
		)
		return
	}
	l.logger.Warn("ledger operation rejected",
		zap.String("op", op),
		zap.String("subject", subject),
		zap.Error(err),
	)
}
