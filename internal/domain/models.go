// Package domain defines the core business entities for finbook.
// These models are independent of storage and transport and represent the
// canonical data structures used throughout the service.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Caller identity
// ============================================================

// CallerScope is the explicit identity of the caller of a ledger operation:
// a user acting alone, or a user acting on behalf of an organization.
// It is always passed in as a value, never read from ambient request state.
type CallerScope struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// ============================================================
// Accounts
// ============================================================

// FinanceAccount is a financial account whose balance is mutated exclusively
// by the ledger engine. Exactly one of UserID / OrganizationID is set.
type FinanceAccount struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Currency       string          `json:"currency"` // ISO-4217-like, informational only
	CurrentBalance decimal.Decimal `json:"current_balance"`
	UserID         string          `json:"user_id,omitempty"`
	OrganizationID string          `json:"organization_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CreateAccountRequest is the payload to open a new account.
type CreateAccountRequest struct {
	Name           string          `json:"name"`
	Currency       string          `json:"currency,omitempty"`
	InitialBalance decimal.Decimal `json:"initial_balance,omitempty"`
	// OrgOwned puts the account under the caller's organization scope
	// instead of the personal one.
	OrgOwned bool `json:"org_owned,omitempty"`
}

// ============================================================
// Transactions
// ============================================================

// TransactionType enumerates the three ledger operations on a balance.
type TransactionType string

const (
	TypeIncome   TransactionType = "INCOME"
	TypeExpense  TransactionType = "EXPENSE"
	TypeTransfer TransactionType = "TRANSFER"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}
	return false
}

// TransactionStatus is informational; whether it gates balance effects is
// controlled by configuration (see service.LedgerOptions).
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Transaction is a single ledger record. Amount is strictly positive;
// the sign of its balance effect is derived from Type.
type Transaction struct {
	ID             string            `json:"id"`
	Type           TransactionType   `json:"type"`
	Status         TransactionStatus `json:"status"`
	Amount         decimal.Decimal   `json:"amount"`
	FeeAmount      decimal.Decimal   `json:"fee_amount"`
	AccountID      string            `json:"account_id"`
	ToAccountID    string            `json:"to_account_id,omitempty"` // TRANSFER only
	CategoryID     string            `json:"category_id,omitempty"`
	PayeeID        string            `json:"payee_id,omitempty"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	TagIDs         []string          `json:"tag_ids,omitempty"`
	Description    string            `json:"description,omitempty"`
	Date           time.Time         `json:"date"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// CreateTransactionRequest is the payload for the create operation.
type CreateTransactionRequest struct {
	Type           TransactionType   `json:"type"`
	Status         TransactionStatus `json:"status,omitempty"` // defaults to completed
	Amount         decimal.Decimal   `json:"amount"`
	FeeAmount      decimal.Decimal   `json:"fee_amount,omitempty"`
	AccountID      string            `json:"account_id"`
	ToAccountID    string            `json:"to_account_id,omitempty"`
	CategoryID     string            `json:"category_id,omitempty"`
	PayeeID        string            `json:"payee_id,omitempty"`
	SubscriptionID string            `json:"subscription_id,omitempty"`
	TagIDs         []string          `json:"tag_ids,omitempty"`
	Description    string            `json:"description,omitempty"`
	Date           time.Time         `json:"date,omitempty"`
}

// UpdateTransactionRequest is a partial payload: nil fields keep the stored
// value. Changing type/amount/fee/accounts triggers a full revert-then-reapply
// of balance effects.
type UpdateTransactionRequest struct {
	Type           *TransactionType   `json:"type,omitempty"`
	Status         *TransactionStatus `json:"status,omitempty"`
	Amount         *decimal.Decimal   `json:"amount,omitempty"`
	FeeAmount      *decimal.Decimal   `json:"fee_amount,omitempty"`
	AccountID      *string            `json:"account_id,omitempty"`
	ToAccountID    *string            `json:"to_account_id,omitempty"`
	CategoryID     *string            `json:"category_id,omitempty"`
	PayeeID        *string            `json:"payee_id,omitempty"`
	SubscriptionID *string            `json:"subscription_id,omitempty"`
	TagIDs         *[]string          `json:"tag_ids,omitempty"`
	Description    *string            `json:"description,omitempty"`
	Date           *time.Time         `json:"date,omitempty"`
}

// ListTransactionsFilter narrows transaction listings.
type ListTransactionsFilter struct {
	AccountID  string
	CategoryID string
	Page       int
	PageSize   int
}

// ============================================================
// Catalog (thin collaborators: categories, payees, tags)
// ============================================================

// Category labels transactions for reporting. The ledger only stores the id.
type Category struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	UserID         string    `json:"user_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Payee is a counterparty reference.
type Payee struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	UserID         string    `json:"user_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Tag is a free-form label attachable to transactions.
type Tag struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	UserID         string    `json:"user_id,omitempty"`
	OrganizationID string    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ============================================================
// Subscriptions
// ============================================================

// SubscriptionCadence is how often a subscription charges.
type SubscriptionCadence string

const (
	CadenceWeekly  SubscriptionCadence = "weekly"
	CadenceMonthly SubscriptionCadence = "monthly"
	CadenceYearly  SubscriptionCadence = "yearly"
)

// Valid reports whether c is a known cadence.
func (c SubscriptionCadence) Valid() bool {
	switch c {
	case CadenceWeekly, CadenceMonthly, CadenceYearly:
		return true
	}
	return false
}

// NextAfter returns the charge date following from, per the cadence.
func (c SubscriptionCadence) NextAfter(from time.Time) time.Time {
	switch c {
	case CadenceWeekly:
		return from.AddDate(0, 0, 7)
	case CadenceYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

// Subscription is a recurring charge posted through the ledger engine by the
// subscription worker when NextChargeAt comes due.
type Subscription struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Amount         decimal.Decimal     `json:"amount"`
	FeeAmount      decimal.Decimal     `json:"fee_amount"`
	AccountID      string              `json:"account_id"`
	CategoryID     string              `json:"category_id,omitempty"`
	PayeeID        string              `json:"payee_id,omitempty"`
	Cadence        SubscriptionCadence `json:"cadence"`
	NextChargeAt   time.Time           `json:"next_charge_at"`
	Active         bool                `json:"active"`
	UserID         string              `json:"user_id,omitempty"`
	OrganizationID string              `json:"organization_id,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// CreateSubscriptionRequest is the payload to register a subscription.
type CreateSubscriptionRequest struct {
	Name         string              `json:"name"`
	Amount       decimal.Decimal     `json:"amount"`
	FeeAmount    decimal.Decimal     `json:"fee_amount,omitempty"`
	AccountID    string              `json:"account_id"`
	CategoryID   string              `json:"category_id,omitempty"`
	PayeeID      string              `json:"payee_id,omitempty"`
	Cadence      SubscriptionCadence `json:"cadence"`
	NextChargeAt time.Time           `json:"next_charge_at,omitempty"`
}

// ============================================================
// Metrics snapshot
// ============================================================

// LedgerMetrics is the JSON snapshot served by GET /v1/metrics/ledger.
type LedgerMetrics struct {
	CreatedTotal            int64   `json:"created_total"`
	UpdatedTotal            int64   `json:"updated_total"`
	DeletedTotal            int64   `json:"deleted_total"`
	FailedTotal             int64   `json:"failed_total"`
	InsufficientBalanceHits int64   `json:"insufficient_balance_hits"`
	CacheHitRate            float64 `json:"cache_hit_rate"`
	Period                  string  `json:"period"`
}
