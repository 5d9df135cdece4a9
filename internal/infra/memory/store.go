// Package memory is an in-memory port.Store used for tests and local runs
// without a database file. Atomic units take a snapshot of the mutable state
// on begin and restore it if the unit fails, so partial effects never survive.
package memory

import (
	"context"
	"sort"
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/port"

	"github.com/shopspring/decimal"
)

// Store holds everything in maps guarded by one lock. The lock is a channel
// so waiting honors context cancellation. A single lock is enough here: units
// are short and the store is not meant for production load.
type Store struct {
	mu            chan struct{}
	accounts      map[string]domain.FinanceAccount
	transactions  map[string]domain.Transaction
	categories    map[string]domain.Category
	payees        map[string]domain.Payee
	tags          map[string]domain.Tag
	subscriptions map[string]domain.Subscription
}

// New creates an empty in-memory store.
func New() *Store {
	s := &Store{
		mu:            make(chan struct{}, 1),
		accounts:      make(map[string]domain.FinanceAccount),
		transactions:  make(map[string]domain.Transaction),
		categories:    make(map[string]domain.Category),
		payees:        make(map[string]domain.Payee),
		tags:          make(map[string]domain.Tag),
		subscriptions: make(map[string]domain.Subscription),
	}
	return s
}

func (s *Store) lock(ctx context.Context) error {
	// An already-cancelled context must never win the race against a free
	// lock, so check it first.
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlock() {
	<-s.mu
}

// InTx serializes atomic units behind the store lock and rolls the mutable
// state back to its snapshot when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	if err := s.lock(ctx); err != nil {
		return &domain.ErrStorage{Op: "begin", Err: err}
	}
	defer s.unlock()

	accountsSnap := copyMap(s.accounts)
	transactionsSnap := copyMap(s.transactions)

	if err := fn(&memTx{s: s}); err != nil {
		s.accounts = accountsSnap
		s.transactions = transactionsSnap
		return err
	}
	return nil
}

func copyMap[T any](m map[string]T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// memTx mutates the store maps directly; the enclosing InTx holds the lock
// and owns rollback.
type memTx struct {
	s *Store
}

func (t *memTx) GetAccount(ctx context.Context, accountID string) (*domain.FinanceAccount, error) {
	acct, ok := t.s.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return &acct, nil
}

func (t *memTx) ApplyBalanceDelta(ctx context.Context, accountID string, delta decimal.Decimal) error {
	acct, ok := t.s.accounts[accountID]
	if !ok {
		return &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	acct.CurrentBalance = acct.CurrentBalance.Add(delta)
	acct.UpdatedAt = time.Now().UTC()
	t.s.accounts[accountID] = acct
	return nil
}

func (t *memTx) DeductBalance(ctx context.Context, accountID string, total decimal.Decimal) error {
	acct, ok := t.s.accounts[accountID]
	if !ok {
		return &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	if acct.CurrentBalance.LessThan(total) {
		return &domain.ErrInsufficientBalance{
			AccountID: accountID,
			Available: acct.CurrentBalance,
			Required:  total,
		}
	}
	acct.CurrentBalance = acct.CurrentBalance.Sub(total)
	acct.UpdatedAt = time.Now().UTC()
	t.s.accounts[accountID] = acct
	return nil
}

func (t *memTx) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, ok := t.s.transactions[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	tx.TagIDs = append([]string(nil), tx.TagIDs...)
	return &tx, nil
}

func (t *memTx) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	t.s.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

func (t *memTx) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if _, ok := t.s.transactions[tx.ID]; !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: tx.ID}
	}
	t.s.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

func (t *memTx) DeleteTransaction(ctx context.Context, id string) error {
	if _, ok := t.s.transactions[id]; !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	delete(t.s.transactions, id)
	return nil
}

func cloneTransaction(tx *domain.Transaction) domain.Transaction {
	out := *tx
	out.TagIDs = append([]string(nil), tx.TagIDs...)
	return out
}

func scopeMatches(userID, orgID string, scope domain.CallerScope) bool {
	if orgID != "" && orgID == scope.OrganizationID {
		return true
	}
	return userID != "" && userID == scope.UserID
}

// CreateAccount stores a new account.
func (s *Store) CreateAccount(ctx context.Context, acct *domain.FinanceAccount) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.accounts[acct.ID] = *acct
	return nil
}

// GetAccount reads one account by id.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.FinanceAccount, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	acct, ok := s.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	return &acct, nil
}

// ListAccounts returns the caller's accounts ordered by creation time.
func (s *Store) ListAccounts(ctx context.Context, scope domain.CallerScope) ([]domain.FinanceAccount, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	out := []domain.FinanceAccount{}
	for _, acct := range s.accounts {
		if scopeMatches(acct.UserID, acct.OrganizationID, scope) {
			out = append(out, acct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetTransaction reads one transaction by id.
func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	tx.TagIDs = append([]string(nil), tx.TagIDs...)
	return &tx, nil
}

// ListTransactions returns the caller's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, scope domain.CallerScope, filter domain.ListTransactionsFilter) ([]domain.Transaction, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	out := []domain.Transaction{}
	for _, tx := range s.transactions {
		acct, ok := s.accounts[tx.AccountID]
		if !ok || !scopeMatches(acct.UserID, acct.OrganizationID, scope) {
			continue
		}
		if filter.AccountID != "" && tx.AccountID != filter.AccountID {
			continue
		}
		if filter.CategoryID != "" && tx.CategoryID != filter.CategoryID {
			continue
		}
		tx.TagIDs = append([]string(nil), tx.TagIDs...)
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	start := (filter.Page - 1) * filter.PageSize
	if start >= len(out) {
		return []domain.Transaction{}, nil
	}
	end := start + filter.PageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], nil
}

// CreateCategory stores a category.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.categories[c.ID] = *c
	return nil
}

// ListCategories returns the caller's categories sorted by name.
func (s *Store) ListCategories(ctx context.Context, scope domain.CallerScope) ([]domain.Category, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	out := []domain.Category{}
	for _, c := range s.categories {
		if scopeMatches(c.UserID, c.OrganizationID, scope) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteCategory removes a category within the caller's scope.
func (s *Store) DeleteCategory(ctx context.Context, scope domain.CallerScope, id string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	c, ok := s.categories[id]
	if !ok || !scopeMatches(c.UserID, c.OrganizationID, scope) {
		return &domain.ErrNotFound{Resource: "category", ID: id}
	}
	delete(s.categories, id)
	return nil
}

// CreatePayee stores a payee.
func (s *Store) CreatePayee(ctx context.Context, p *domain.Payee) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.payees[p.ID] = *p
	return nil
}

// ListPayees returns the caller's payees sorted by name.
func (s *Store) ListPayees(ctx context.Context, scope domain.CallerScope) ([]domain.Payee, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	out := []domain.Payee{}
	for _, p := range s.payees {
		if scopeMatches(p.UserID, p.OrganizationID, scope) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeletePayee removes a payee within the caller's scope.
func (s *Store) DeletePayee(ctx context.Context, scope domain.CallerScope, id string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	p, ok := s.payees[id]
	if !ok || !scopeMatches(p.UserID, p.OrganizationID, scope) {
		return &domain.ErrNotFound{Resource: "payee", ID: id}
	}
	delete(s.payees, id)
	return nil
}

// CreateTag stores a tag.
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.tags[t.ID] = *t
	return nil
}

// ListTags returns the caller's tags sorted by name.
func (s *Store) ListTags(ctx context.Context, scope domain.CallerScope) ([]domain.Tag, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	out := []domain.Tag{}
	for _, t := range s.tags {
		if scopeMatches(t.UserID, t.OrganizationID, scope) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteTag removes a tag within the caller's scope.
func (s *Store) DeleteTag(ctx context.Context, scope domain.CallerScope, id string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	t, ok := s.tags[id]
	if !ok || !scopeMatches(t.UserID, t.OrganizationID, scope) {
		return &domain.ErrNotFound{Resource: "tag", ID: id}
	}
	delete(s.tags, id)
	return nil
}

// CreateSubscription stores a subscription.
func (s *Store) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.subscriptions[sub.ID] = *sub
	return nil
}

// ListSubscriptions returns the caller's subscriptions, next charge first.
func (s *Store) ListSubscriptions(ctx context.Context, scope domain.CallerScope) ([]domain.Subscription, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	out := []domain.Subscription{}
	for _, sub := range s.subscriptions {
		if scopeMatches(sub.UserID, sub.OrganizationID, scope) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextChargeAt.Before(out[j].NextChargeAt) })
	return out, nil
}

// DeleteSubscription removes a subscription within the caller's scope.
func (s *Store) DeleteSubscription(ctx context.Context, scope domain.CallerScope, id string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	sub, ok := s.subscriptions[id]
	if !ok || !scopeMatches(sub.UserID, sub.OrganizationID, scope) {
		return &domain.ErrNotFound{Resource: "subscription", ID: id}
	}
	delete(s.subscriptions, id)
	return nil
}

// ListDueSubscriptions returns active subscriptions due at or before now.
func (s *Store) ListDueSubscriptions(ctx context.Context, now time.Time, limit int) ([]domain.Subscription, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	out := []domain.Subscription{}
	for _, sub := range s.subscriptions {
		if sub.Active && !sub.NextChargeAt.After(now) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextChargeAt.Before(out[j].NextChargeAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AdvanceSubscription moves next_charge_at forward after a charge posts.
func (s *Store) AdvanceSubscription(ctx context.Context, id string, next time.Time) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	sub, ok := s.subscriptions[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "subscription", ID: id}
	}
	sub.NextChargeAt = next
	s.subscriptions[id] = sub
	return nil
}
