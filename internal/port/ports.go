// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/finbook/finbook/internal/domain"

	"github.com/shopspring/decimal"
)

// LedgerTx is the store's view inside one atomic unit. Every method runs
// within the enclosing storage transaction; if the callback given to InTx
// returns an error, none of its writes survive.
type LedgerTx interface {
	// GetAccount reads an account within the transaction.
	GetAccount(ctx context.Context, accountID string) (*domain.FinanceAccount, error)

	// ApplyBalanceDelta adjusts an account balance by a signed delta, as a
	// relative update evaluated by the storage engine itself. Never used to
	// set an absolute value.
	ApplyBalanceDelta(ctx context.Context, accountID string, delta decimal.Decimal) error

	// DeductBalance subtracts total from the account balance only if the
	// balance covers it, atomically. Returns *domain.ErrInsufficientBalance
	// otherwise, with no write performed.
	DeductBalance(ctx context.Context, accountID string, total decimal.Decimal) error

	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
	UpdateTransaction(ctx context.Context, tx *domain.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

// LedgerStore opens atomic units for the ledger engine. Implementations must
// guarantee that concurrent units touching the same account serialize their
// read-modify-write balance steps.
type LedgerStore interface {
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// AccountStore covers account lifecycle outside the ledger's atomic units.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct *domain.FinanceAccount) error
	GetAccount(ctx context.Context, accountID string) (*domain.FinanceAccount, error)
	ListAccounts(ctx context.Context, scope domain.CallerScope) ([]domain.FinanceAccount, error)
}

// TransactionReader serves the read-only transaction endpoints.
type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, scope domain.CallerScope, filter domain.ListTransactionsFilter) ([]domain.Transaction, error)
}

// CatalogStore persists the thin associative entities. The ledger trusts
// these ids; it never validates them beyond storage.
type CatalogStore interface {
	CreateCategory(ctx context.Context, c *domain.Category) error
	ListCategories(ctx context.Context, scope domain.CallerScope) ([]domain.Category, error)
	DeleteCategory(ctx context.Context, scope domain.CallerScope, id string) error

	CreatePayee(ctx context.Context, p *domain.Payee) error
	ListPayees(ctx context.Context, scope domain.CallerScope) ([]domain.Payee, error)
	DeletePayee(ctx context.Context, scope domain.CallerScope, id string) error

	CreateTag(ctx context.Context, t *domain.Tag) error
	ListTags(ctx context.Context, scope domain.CallerScope) ([]domain.Tag, error)
	DeleteTag(ctx context.Context, scope domain.CallerScope, id string) error
}

// SubscriptionStore persists recurring charges and feeds the worker.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, s *domain.Subscription) error
	ListSubscriptions(ctx context.Context, scope domain.CallerScope) ([]domain.Subscription, error)
	DeleteSubscription(ctx context.Context, scope domain.CallerScope, id string) error

	// ListDueSubscriptions returns active subscriptions with
	// next_charge_at <= now, oldest first.
	ListDueSubscriptions(ctx context.Context, now time.Time, limit int) ([]domain.Subscription, error)
	// AdvanceSubscription moves next_charge_at forward after a charge posts.
	AdvanceSubscription(ctx context.Context, id string, next time.Time) error
}

// Store is the full persistence contract, implemented by the sqlite adapter
// and the in-memory adapter.
type Store interface {
	LedgerStore
	AccountStore
	TransactionReader
	CatalogStore
	SubscriptionStore
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
