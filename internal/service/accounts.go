package service

import (
	"context"
	"strings"
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/infra/observability"
	"github.com/finbook/finbook/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var accountsTracer = otel.Tracer("service/accounts")

// Accounts is the account-management collaborator. It creates and reads
// accounts; balances are mutated exclusively by the ledger engine.
type Accounts struct {
	store   port.Store
	auth    *Authorizer
	cache   port.Cache[*domain.FinanceAccount]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewAccounts creates the accounts service. The cache is shared with the
// ledger engine, which invalidates entries after balance mutations.
func NewAccounts(store port.Store, auth *Authorizer, cache port.Cache[*domain.FinanceAccount], metrics *observability.Metrics, logger *zap.Logger) *Accounts {
	return &Accounts{store: store, auth: auth, cache: cache, metrics: metrics, logger: logger}
}

// CreateAccount opens a new account under the caller's personal or
// organization scope. Exactly one owner field is set.
func (a *Accounts) CreateAccount(ctx context.Context, scope domain.CallerScope, req *domain.CreateAccountRequest) (*domain.FinanceAccount, error) {
	ctx, span := accountsTracer.Start(ctx, "Accounts.CreateAccount")
	defer span.End()

	if strings.TrimSpace(req.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if req.InitialBalance.IsNegative() {
		return nil, &domain.ErrValidation{Field: "initial_balance", Message: "must not be negative"}
	}
	if req.OrgOwned && scope.OrganizationID == "" {
		return nil, &domain.ErrValidation{Field: "org_owned", Message: "caller has no organization"}
	}

	now := time.Now().UTC()
	acct := &domain.FinanceAccount{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(req.Name),
		Currency:       req.Currency,
		CurrentBalance: req.InitialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if acct.Currency == "" {
		acct.Currency = "USD"
	}
	if req.OrgOwned {
		acct.OrganizationID = scope.OrganizationID
	} else {
		acct.UserID = scope.UserID
	}

	if err := a.store.CreateAccount(ctx, acct); err != nil {
		a.logger.Error("failed to create account", zap.Error(err))
		return nil, err
	}

	a.logger.Info("account created",
		zap.String("account_id", acct.ID),
		zap.String("currency", acct.Currency),
		zap.Bool("org_owned", req.OrgOwned),
	)
	return acct, nil
}

// GetAccount returns one account within the caller's scope, served from the
// TTL cache when possible.
func (a *Accounts) GetAccount(ctx context.Context, scope domain.CallerScope, accountID string) (*domain.FinanceAccount, error) {
	ctx, span := accountsTracer.Start(ctx, "Accounts.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	if a.cache != nil {
		if acct, ok := a.cache.Get(accountID); ok {
			a.metrics.IncrCacheHit("account")
			if err := a.auth.Authorize(acct, scope); err != nil {
				return nil, err
			}
			return acct, nil
		}
		a.metrics.IncrCacheMiss("account")
	}

	acct, err := a.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := a.auth.Authorize(acct, scope); err != nil {
		return nil, err
	}
	if a.cache != nil {
		a.cache.Set(accountID, acct)
	}
	return acct, nil
}

// ListAccounts returns every account in the caller's scope.
func (a *Accounts) ListAccounts(ctx context.Context, scope domain.CallerScope) ([]domain.FinanceAccount, error) {
	ctx, span := accountsTracer.Start(ctx, "Accounts.ListAccounts")
	defer span.End()

	return a.store.ListAccounts(ctx, scope)
}
