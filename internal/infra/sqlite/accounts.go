package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/finbook/finbook/internal/domain"
)

const accountColumns = "id, name, currency, balance_units, user_id, organization_id, created_at, updated_at"

func scanAccount(row *sql.Row) (*domain.FinanceAccount, error) {
	var a domain.FinanceAccount
	var balanceUnits int64
	var createdAt, updatedAt string
	err := row.Scan(&a.ID, &a.Name, &a.Currency, &balanceUnits, &a.UserID, &a.OrganizationID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.CurrentBalance = fromUnits(balanceUnits)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func getAccount(ctx context.Context, q querier, accountID string) (*domain.FinanceAccount, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", accountID)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "get account", Err: err}
	}
	return acct, nil
}

// CreateAccount inserts a new account row.
func (s *Store) CreateAccount(ctx context.Context, acct *domain.FinanceAccount) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts ("+accountColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		acct.ID, acct.Name, acct.Currency, toUnits(acct.CurrentBalance),
		acct.UserID, acct.OrganizationID, fmtTime(acct.CreatedAt), fmtTime(acct.UpdatedAt),
	)
	if err != nil {
		return &domain.ErrStorage{Op: "create account", Err: err}
	}
	return nil
}

// GetAccount reads one account by id, without scope filtering. Ownership is
// the service layer's call.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.FinanceAccount, error) {
	return getAccount(ctx, s.db, accountID)
}

// ListAccounts returns every account owned by the caller's scope.
func (s *Store) ListAccounts(ctx context.Context, scope domain.CallerScope) ([]domain.FinanceAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE "+scopeClause+" ORDER BY created_at",
		scope.UserID, scope.OrganizationID,
	)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list accounts", Err: err}
	}
	defer rows.Close()

	accounts := []domain.FinanceAccount{}
	for rows.Next() {
		var a domain.FinanceAccount
		var balanceUnits int64
		var createdAt, updatedAt string
		if err := rows.Scan(&a.ID, &a.Name, &a.Currency, &balanceUnits, &a.UserID, &a.OrganizationID, &createdAt, &updatedAt); err != nil {
			return nil, &domain.ErrStorage{Op: "scan account", Err: err}
		}
		a.CurrentBalance = fromUnits(balanceUnits)
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list accounts", Err: err}
	}
	return accounts, nil
}
