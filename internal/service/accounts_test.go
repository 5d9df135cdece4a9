package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/infra/cache"
	"github.com/finbook/finbook/internal/infra/memory"
	"github.com/finbook/finbook/internal/infra/observability"
	"github.com/finbook/finbook/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newTestAccounts(t *testing.T) (*service.Accounts, *memory.Store) {
	t.Helper()
	store := memory.New()
	accountCache := cache.New[*domain.FinanceAccount](time.Minute)
	svc := service.NewAccounts(store, service.NewAuthorizer(), accountCache, observability.NewMetrics(), zap.NewNop())
	return svc, store
}

func TestCreateAccount_PersonalScope(t *testing.T) {
	svc, _ := newTestAccounts(t)

	acct, err := svc.CreateAccount(context.Background(), aliceScope, &domain.CreateAccountRequest{
		Name:           "  Checking ",
		InitialBalance: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if acct.Name != "Checking" {
		t.Errorf("expected trimmed name, got %q", acct.Name)
	}
	if acct.Currency != "USD" {
		t.Errorf("expected default currency USD, got %q", acct.Currency)
	}
	if acct.UserID != "alice" || acct.OrganizationID != "" {
		t.Errorf("expected personal ownership, got user=%q org=%q", acct.UserID, acct.OrganizationID)
	}
	if !acct.CurrentBalance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected opening balance 100, got %s", acct.CurrentBalance)
	}
}

func TestCreateAccount_OrgScope(t *testing.T) {
	svc, _ := newTestAccounts(t)
	scope := domain.CallerScope{UserID: "alice", OrganizationID: "acme"}

	acct, err := svc.CreateAccount(context.Background(), scope, &domain.CreateAccountRequest{
		Name:     "Ops",
		OrgOwned: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if acct.OrganizationID != "acme" || acct.UserID != "" {
		t.Errorf("expected org ownership, got user=%q org=%q", acct.UserID, acct.OrganizationID)
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	svc, _ := newTestAccounts(t)

	tests := []struct {
		name  string
		scope domain.CallerScope
		req   domain.CreateAccountRequest
	}{
		{"empty name", aliceScope, domain.CreateAccountRequest{Name: "   "}},
		{"negative opening balance", aliceScope, domain.CreateAccountRequest{Name: "X", InitialBalance: decimal.NewFromInt(-1)}},
		{"org owned without org", aliceScope, domain.CreateAccountRequest{Name: "X", OrgOwned: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAccount(context.Background(), tc.scope, &tc.req)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestGetAccount_EnforcesScopeEvenOnCacheHit(t *testing.T) {
	svc, _ := newTestAccounts(t)

	acct, err := svc.CreateAccount(context.Background(), aliceScope, &domain.CreateAccountRequest{Name: "Checking"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// First read warms the cache.
	if _, err := svc.GetAccount(context.Background(), aliceScope, acct.ID); err != nil {
		t.Fatalf("warm read: %v", err)
	}

	// The cached entry must not leak across scopes.
	_, err = svc.GetAccount(context.Background(), domain.CallerScope{UserID: "bob"}, acct.ID)
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ErrForbidden on cached read, got %v", err)
	}
}

func TestListAccounts_FiltersByScope(t *testing.T) {
	svc, _ := newTestAccounts(t)

	if _, err := svc.CreateAccount(context.Background(), aliceScope, &domain.CreateAccountRequest{Name: "A"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateAccount(context.Background(), domain.CallerScope{UserID: "bob"}, &domain.CreateAccountRequest{Name: "B"}); err != nil {
		t.Fatal(err)
	}

	list, err := svc.ListAccounts(context.Background(), aliceScope)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "A" {
		t.Errorf("expected only alice's account, got %+v", list)
	}
}
