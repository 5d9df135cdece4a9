package sqlite

import (
	"context"
	"time"

	"github.com/finbook/finbook/internal/domain"
)

const subscriptionColumns = "id, name, amount_units, fee_units, account_id, category_id, payee_id, " +
	"cadence, next_charge_at, active, user_id, organization_id, created_at"

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var s domain.Subscription
	var amountUnits, feeUnits int64
	var cadence, nextChargeAt, createdAt string
	var active int
	err := row.Scan(&s.ID, &s.Name, &amountUnits, &feeUnits, &s.AccountID, &s.CategoryID, &s.PayeeID,
		&cadence, &nextChargeAt, &active, &s.UserID, &s.OrganizationID, &createdAt)
	if err != nil {
		return nil, err
	}
	s.Amount = fromUnits(amountUnits)
	s.FeeAmount = fromUnits(feeUnits)
	s.Cadence = domain.SubscriptionCadence(cadence)
	s.NextChargeAt = parseTime(nextChargeAt)
	s.Active = active != 0
	s.CreatedAt = parseTime(createdAt)
	return &s, nil
}

// CreateSubscription inserts a subscription row.
func (s *Store) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	active := 0
	if sub.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO subscriptions ("+subscriptionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		sub.ID, sub.Name, toUnits(sub.Amount), toUnits(sub.FeeAmount), sub.AccountID,
		sub.CategoryID, sub.PayeeID, string(sub.Cadence), fmtTime(sub.NextChargeAt),
		active, sub.UserID, sub.OrganizationID, fmtTime(sub.CreatedAt),
	)
	if err != nil {
		return &domain.ErrStorage{Op: "create subscription", Err: err}
	}
	return nil
}

// ListSubscriptions returns the caller's subscriptions, next charge first.
func (s *Store) ListSubscriptions(ctx context.Context, scope domain.CallerScope) ([]domain.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE "+scopeClause+" ORDER BY next_charge_at",
		scope.UserID, scope.OrganizationID,
	)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list subscriptions", Err: err}
	}
	defer rows.Close()

	subs := []domain.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, &domain.ErrStorage{Op: "scan subscription", Err: err}
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list subscriptions", Err: err}
	}
	return subs, nil
}

// DeleteSubscription removes a subscription within the caller's scope.
func (s *Store) DeleteSubscription(ctx context.Context, scope domain.CallerScope, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM subscriptions WHERE id = ? AND "+scopeClause,
		id, scope.UserID, scope.OrganizationID,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "delete subscription", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.ErrStorage{Op: "delete subscription", Err: err}
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "subscription", ID: id}
	}
	return nil
}

// ListDueSubscriptions returns active subscriptions due at or before now,
// oldest first.
func (s *Store) ListDueSubscriptions(ctx context.Context, now time.Time, limit int) ([]domain.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE active = 1 AND next_charge_at <= ? "+
			"ORDER BY next_charge_at LIMIT ?",
		fmtTime(now), limit,
	)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list due subscriptions", Err: err}
	}
	defer rows.Close()

	subs := []domain.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, &domain.ErrStorage{Op: "scan subscription", Err: err}
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list due subscriptions", Err: err}
	}
	return subs, nil
}

// AdvanceSubscription moves next_charge_at forward after a successful charge.
func (s *Store) AdvanceSubscription(ctx context.Context, id string, next time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE subscriptions SET next_charge_at = ? WHERE id = ?",
		fmtTime(next), id,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "advance subscription", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &domain.ErrStorage{Op: "advance subscription", Err: err}
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "subscription", ID: id}
	}
	return nil
}
