package service_test

import (
	"errors"
	"testing"

	"github.com/finbook/finbook/internal/domain"
	"github.com/finbook/finbook/internal/service"
)

func TestAuthorize(t *testing.T) {
	auth := service.NewAuthorizer()

	tests := []struct {
		name      string
		acct      domain.FinanceAccount
		scope     domain.CallerScope
		wantAllow bool
	}{
		{
			name:      "personal account, owning user",
			acct:      domain.FinanceAccount{ID: "a1", UserID: "alice"},
			scope:     domain.CallerScope{UserID: "alice"},
			wantAllow: true,
		},
		{
			name:      "personal account, other user",
			acct:      domain.FinanceAccount{ID: "a1", UserID: "alice"},
			scope:     domain.CallerScope{UserID: "bob"},
			wantAllow: false,
		},
		{
			name:      "org account, member in org context",
			acct:      domain.FinanceAccount{ID: "a1", OrganizationID: "acme"},
			scope:     domain.CallerScope{UserID: "alice", OrganizationID: "acme"},
			wantAllow: true,
		},
		{
			name:      "org account, wrong org",
			acct:      domain.FinanceAccount{ID: "a1", OrganizationID: "acme"},
			scope:     domain.CallerScope{UserID: "alice", OrganizationID: "globex"},
			wantAllow: false,
		},
		{
			name:      "org account, personal scope only",
			acct:      domain.FinanceAccount{ID: "a1", OrganizationID: "acme"},
			scope:     domain.CallerScope{UserID: "alice"},
			wantAllow: false,
		},
		{
			name:      "personal account, caller also carries org",
			acct:      domain.FinanceAccount{ID: "a1", UserID: "alice"},
			scope:     domain.CallerScope{UserID: "alice", OrganizationID: "acme"},
			wantAllow: true,
		},
		{
			name:      "empty scope never matches",
			acct:      domain.FinanceAccount{ID: "a1"},
			scope:     domain.CallerScope{},
			wantAllow: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := auth.Authorize(&tc.acct, tc.scope)
			if tc.wantAllow && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tc.wantAllow {
				var forbidden *domain.ErrForbidden
				if !errors.As(err, &forbidden) {
					t.Fatalf("expected ErrForbidden, got %v", err)
				}
			}
		})
	}
}
