package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/finbook/finbook/internal/domain"
)

const transactionColumns = "id, type, status, amount_units, fee_units, account_id, to_account_id, " +
	"category_id, payee_id, subscription_id, description, tx_date, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var typ, status string
	var amountUnits, feeUnits int64
	var txDate, createdAt, updatedAt string
	err := row.Scan(&tx.ID, &typ, &status, &amountUnits, &feeUnits, &tx.AccountID, &tx.ToAccountID,
		&tx.CategoryID, &tx.PayeeID, &tx.SubscriptionID, &tx.Description, &txDate, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	tx.Type = domain.TransactionType(typ)
	tx.Status = domain.TransactionStatus(status)
	tx.Amount = fromUnits(amountUnits)
	tx.FeeAmount = fromUnits(feeUnits)
	tx.Date = parseTime(txDate)
	tx.CreatedAt = parseTime(createdAt)
	tx.UpdatedAt = parseTime(updatedAt)
	return &tx, nil
}

func loadTagIDs(ctx context.Context, q querier, transactionID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT tag_id FROM transaction_tags WHERE transaction_id = ? ORDER BY tag_id", transactionID)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "load tags", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &domain.ErrStorage{Op: "load tags", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "load tags", Err: err}
	}
	return ids, nil
}

func getTransaction(ctx context.Context, q querier, id string) (*domain.Transaction, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "get transaction", Err: err}
	}
	tx.TagIDs, err = loadTagIDs(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// GetTransaction reads one transaction by id, without scope filtering.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return getTransaction(ctx, s.db, id)
}

// ListTransactions returns the caller's transactions, newest first. Ownership
// follows the source account.
func (s *Store) ListTransactions(ctx context.Context, scope domain.CallerScope, filter domain.ListTransactionsFilter) ([]domain.Transaction, error) {
	query := "SELECT t.id, t.type, t.status, t.amount_units, t.fee_units, t.account_id, t.to_account_id, " +
		"t.category_id, t.payee_id, t.subscription_id, t.description, t.tx_date, t.created_at, t.updated_at " +
		"FROM transactions t JOIN accounts a ON a.id = t.account_id " +
		"WHERE ((a.user_id != '' AND a.user_id = ?) OR (a.organization_id != '' AND a.organization_id = ?))"
	args := []any{scope.UserID, scope.OrganizationID}

	if filter.AccountID != "" {
		query += " AND t.account_id = ?"
		args = append(args, filter.AccountID)
	}
	if filter.CategoryID != "" {
		query += " AND t.category_id = ?"
		args = append(args, filter.CategoryID)
	}
	query += " ORDER BY t.tx_date DESC, t.created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list transactions", Err: err}
	}
	defer rows.Close()

	txs := []domain.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, &domain.ErrStorage{Op: "scan transaction", Err: err}
		}
		txs = append(txs, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list transactions", Err: err}
	}

	for i := range txs {
		txs[i].TagIDs, err = loadTagIDs(ctx, s.db, txs[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return txs, nil
}
