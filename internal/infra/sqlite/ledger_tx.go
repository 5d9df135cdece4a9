package sqlite

import (
	"context"
	"time"

	"github.com/finbook/finbook/internal/domain"

	"github.com/shopspring/decimal"
)

// ledgerTx implements port.LedgerTx on an open database transaction. Balance
// mutations are expressed as relative SQL updates so the engine applies the
// delta against the committed value, not a value read earlier in Go.
type ledgerTx struct {
	q querier
}

func (t *ledgerTx) GetAccount(ctx context.Context, accountID string) (*domain.FinanceAccount, error) {
	return getAccount(ctx, t.q, accountID)
}

func (t *ledgerTx) ApplyBalanceDelta(ctx context.Context, accountID string, delta decimal.Decimal) error {
	res, err := t.q.ExecContext(ctx,
		"UPDATE accounts SET balance_units = balance_units + ?, updated_at = ? WHERE id = ?",
		toUnits(delta), fmtTime(time.Now()), accountID,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "apply balance delta", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.ErrStorage{Op: "apply balance delta", Err: err}
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return nil
}

func (t *ledgerTx) DeductBalance(ctx context.Context, accountID string, total decimal.Decimal) error {
	units := toUnits(total)
	res, err := t.q.ExecContext(ctx,
		"UPDATE accounts SET balance_units = balance_units - ?, updated_at = ? WHERE id = ? AND balance_units >= ?",
		units, fmtTime(time.Now()), accountID, units,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "deduct balance", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.ErrStorage{Op: "deduct balance", Err: err}
	}
	if n == 0 {
		// Either the account vanished or the balance cannot cover the
		// deduction. Re-read inside the same transaction to tell them apart.
		acct, err := getAccount(ctx, t.q, accountID)
		if err != nil {
			return err
		}
		return &domain.ErrInsufficientBalance{
			AccountID: accountID,
			Available: acct.CurrentBalance,
			Required:  total,
		}
	}
	return nil
}

func (t *ledgerTx) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return getTransaction(ctx, t.q, id)
}

func (t *ledgerTx) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	_, err := t.q.ExecContext(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		tx.ID, string(tx.Type), string(tx.Status), toUnits(tx.Amount), toUnits(tx.FeeAmount),
		tx.AccountID, tx.ToAccountID, tx.CategoryID, tx.PayeeID, tx.SubscriptionID,
		tx.Description, fmtTime(tx.Date), fmtTime(tx.CreatedAt), fmtTime(tx.UpdatedAt),
	)
	if err != nil {
		return &domain.ErrStorage{Op: "insert transaction", Err: err}
	}
	return replaceTags(ctx, t.q, tx.ID, tx.TagIDs)
}

func (t *ledgerTx) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE transactions SET type = ?, status = ?, amount_units = ?, fee_units = ?,
			account_id = ?, to_account_id = ?, category_id = ?, payee_id = ?,
			subscription_id = ?, description = ?, tx_date = ?, updated_at = ?
		 WHERE id = ?`,
		string(tx.Type), string(tx.Status), toUnits(tx.Amount), toUnits(tx.FeeAmount),
		tx.AccountID, tx.ToAccountID, tx.CategoryID, tx.PayeeID,
		tx.SubscriptionID, tx.Description, fmtTime(tx.Date), fmtTime(tx.UpdatedAt),
		tx.ID,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "update transaction", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.ErrStorage{Op: "update transaction", Err: err}
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: tx.ID}
	}
	return replaceTags(ctx, t.q, tx.ID, tx.TagIDs)
}

func (t *ledgerTx) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := t.q.ExecContext(ctx,
		"DELETE FROM transaction_tags WHERE transaction_id = ?", id); err != nil {
		return &domain.ErrStorage{Op: "delete transaction tags", Err: err}
	}
	res, err := t.q.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return &domain.ErrStorage{Op: "delete transaction", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.ErrStorage{Op: "delete transaction", Err: err}
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return nil
}

func replaceTags(ctx context.Context, q querier, transactionID string, tagIDs []string) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM transaction_tags WHERE transaction_id = ?", transactionID); err != nil {
		return &domain.ErrStorage{Op: "replace tags", Err: err}
	}
	for _, tagID := range tagIDs {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)",
			transactionID, tagID); err != nil {
			return &domain.ErrStorage{Op: "replace tags", Err: err}
		}
	}
	return nil
}
